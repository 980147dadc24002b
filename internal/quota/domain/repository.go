package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
)

// Repository is the persistence surface of the quota ledger. Reserve,
// Commit and Release are atomic with respect to concurrent callers on
// the same account.
type Repository interface {
	FindAccount(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error)

	// RolloverPeriod resets consumption for a new billing period. The
	// observed period start guards against two concurrent rollovers;
	// losing the race is not an error.
	RolloverPeriod(ctx context.Context, id snowflake.ID, observedStart, newStart time.Time) error

	// Reserve holds res.Units against the account's remaining quota
	// and persists the reservation in one transaction. Returns
	// ErrQuotaExceeded when the hold would not fit.
	Reserve(ctx context.Context, res *Reservation) error

	// Commit converts a pending reservation into permanent
	// consumption of actual units.
	Commit(ctx context.Context, reservationID string, actual int64) (*CommitResult, error)

	// Release returns a pending reservation's units to the pool.
	Release(ctx context.Context, reservationID string) error

	// ExpiredPending lists pending reservations past their deadline,
	// oldest first.
	ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)
}
