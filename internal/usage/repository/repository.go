package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	usagedomain "github.com/autogenlabs-dev/tokengate/internal/usage/domain"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) usagedomain.Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertTx(ctx context.Context, tx *gorm.DB, event *usagedomain.UsageEvent) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(event).Error
}

func (r *Repository) ListByAccount(ctx context.Context, accountID snowflake.ID, since time.Time, limit int) ([]usagedomain.UsageEvent, error) {
	var events []usagedomain.UsageEvent
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) TotalsByAccount(ctx context.Context, accountID snowflake.ID, since time.Time) (map[string]int64, error) {
	type row struct {
		Outcome string
		Total   int64
	}
	var rows []row
	query := r.db.WithContext(ctx).
		Model(&usagedomain.UsageEvent{}).
		Select("outcome, SUM(units) AS total").
		Where("account_id = ?", accountID).
		Group("outcome")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.Outcome] = r.Total
	}
	return totals, nil
}
