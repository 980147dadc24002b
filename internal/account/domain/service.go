package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound        = errors.New("account_not_found")
	ErrDeactivated     = errors.New("account_deactivated")
	ErrInvalidSubject  = errors.New("invalid_subject")
	ErrInvalidProvider = errors.New("invalid_identity_provider")
)

// Service resolves verified external identities to canonical accounts,
// provisioning on first sight.
type Service interface {
	// Resolve returns the account linked to (provider, subject),
	// creating one with default tier and quota when the subject has
	// never been seen. Provisioning is idempotent under concurrent
	// first use.
	Resolve(ctx context.Context, provider, subject string) (*Account, error)

	// GetByID returns an account by canonical id.
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
}
