package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertTx appends an event inside an existing transaction so the
	// durable record and its outbox entry land atomically.
	InsertTx(ctx context.Context, tx *gorm.DB, event *UsageEvent) error

	// ListByAccount returns events for an account since a point in
	// time, newest first.
	ListByAccount(ctx context.Context, accountID snowflake.ID, since time.Time, limit int) ([]UsageEvent, error)

	// TotalsByAccount sums committed units per outcome since a point
	// in time.
	TotalsByAccount(ctx context.Context, accountID snowflake.ID, since time.Time) (map[string]int64, error)
}
