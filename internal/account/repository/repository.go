package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) accountdomain.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accountdomain.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *Repository) FindBySubject(ctx context.Context, provider, subject string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.WithContext(ctx).
		Joins("JOIN external_identities ON external_identities.account_id = accounts.id").
		Where("external_identities.provider = ? AND external_identities.subject = ?", provider, subject).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accountdomain.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *Repository) CreateWithIdentity(ctx context.Context, account *accountdomain.Account, identity *accountdomain.ExternalIdentity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		identity.AccountID = account.ID
		return tx.Create(identity).Error
	})
}
