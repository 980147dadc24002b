package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) apikeydomain.Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, key *apikeydomain.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *Repository) FindByHash(ctx context.Context, hash string) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ?", hash).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apikeydomain.ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (r *Repository) FindByID(ctx context.Context, accountID, id snowflake.ID) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apikeydomain.ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (r *Repository) ListByAccount(ctx context.Context, accountID snowflake.ID) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (r *Repository) Revoke(ctx context.Context, accountID, id snowflake.ID) error {
	result := r.db.WithContext(ctx).
		Model(&apikeydomain.APIKey{}).
		Where("id = ? AND account_id = ? AND is_active = ?", id, accountID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apikeydomain.ErrNotFound
	}
	return nil
}

func (r *Repository) TouchLastUsed(ctx context.Context, id snowflake.ID, usedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&apikeydomain.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt).Error
}
