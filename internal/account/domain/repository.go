package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Account, error)
	FindBySubject(ctx context.Context, provider, subject string) (*Account, error)
	// CreateWithIdentity inserts the account and its identity link in
	// one transaction. Returns the storage error unwrapped so callers
	// can fall back to a second lookup on unique-constraint conflicts.
	CreateWithIdentity(ctx context.Context, account *Account, identity *ExternalIdentity) error
}
