package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, key *APIKey) error
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
	FindByID(ctx context.Context, accountID, id snowflake.ID) (*APIKey, error)
	ListByAccount(ctx context.Context, accountID snowflake.ID) ([]APIKey, error)
	// Revoke flips the active flag; keys are never physically deleted.
	Revoke(ctx context.Context, accountID, id snowflake.ID) error
	TouchLastUsed(ctx context.Context, id snowflake.ID, usedAt time.Time) error
}
