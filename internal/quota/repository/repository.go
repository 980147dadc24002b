package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) quotadomain.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindAccount(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
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

func (r *Repository) RolloverPeriod(ctx context.Context, id snowflake.ID, observedStart, newStart time.Time) error {
	// Guarded on the observed period start so concurrent reservers
	// reset the period exactly once. RowsAffected == 0 means another
	// request already rolled it over.
	return r.db.WithContext(ctx).
		Model(&accountdomain.Account{}).
		Where("id = ? AND period_start = ?", id, observedStart).
		Updates(map[string]any{
			"quota_consumed": 0,
			"over_limit":     false,
			"period_start":   newStart,
		}).Error
}

func (r *Repository) Reserve(ctx context.Context, res *quotadomain.Reservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Single-statement check-and-increment. Two concurrent
		// reservations on the same account serialize on this row
		// update; neither can observe a stale counter.
		result := tx.Model(&accountdomain.Account{}).
			Where("id = ? AND is_active AND quota_consumed + quota_reserved + ? <= quota_limit", res.AccountID, res.Units).
			Update("quota_reserved", gorm.Expr("quota_reserved + ?", res.Units))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var account accountdomain.Account
			if err := tx.Where("id = ?", res.AccountID).First(&account).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return accountdomain.ErrNotFound
				}
				return err
			}
			if !account.IsActive {
				return quotadomain.ErrAccountInactive
			}
			return quotadomain.ErrQuotaExceeded
		}
		return tx.Create(res).Error
	})
}

func (r *Repository) Commit(ctx context.Context, reservationID string, actual int64) (*quotadomain.CommitResult, error) {
	var out *quotadomain.CommitResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := resolvePending(tx, reservationID, quotadomain.StatusCommitted)
		if err != nil {
			return err
		}

		err = tx.Model(&accountdomain.Account{}).
			Where("id = ?", res.AccountID).
			Updates(map[string]any{
				"quota_reserved": gorm.Expr("CASE WHEN quota_reserved > ? THEN quota_reserved - ? ELSE 0 END", res.Units, res.Units),
				"quota_consumed": gorm.Expr("quota_consumed + ?", actual),
			}).Error
		if err != nil {
			return err
		}

		var account accountdomain.Account
		if err := tx.Where("id = ?", res.AccountID).First(&account).Error; err != nil {
			return err
		}

		overage := false
		if account.QuotaConsumed > account.QuotaLimit && !account.OverLimit {
			if err := tx.Model(&account).Update("over_limit", true).Error; err != nil {
				return err
			}
			overage = true
		}

		out = &quotadomain.CommitResult{
			AccountID: res.AccountID,
			Units:     actual,
			Remaining: account.QuotaRemaining(),
			Overage:   overage,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) Release(ctx context.Context, reservationID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := resolvePending(tx, reservationID, quotadomain.StatusReleased)
		if err != nil {
			return err
		}
		return tx.Model(&accountdomain.Account{}).
			Where("id = ?", res.AccountID).
			Update("quota_reserved", gorm.Expr("CASE WHEN quota_reserved > ? THEN quota_reserved - ? ELSE 0 END", res.Units, res.Units)).
			Error
	})
}

func (r *Repository) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]quotadomain.Reservation, error) {
	var rows []quotadomain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", quotadomain.StatusPending, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// resolvePending flips a pending reservation to its terminal status.
// The guarded update makes commit and release mutually exclusive even
// when a cancellation races the completion signal.
func resolvePending(tx *gorm.DB, reservationID, status string) (*quotadomain.Reservation, error) {
	result := tx.Model(&quotadomain.Reservation{}).
		Where("id = ? AND status = ?", reservationID, quotadomain.StatusPending).
		Update("status", status)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var res quotadomain.Reservation
		if err := tx.Where("id = ?", reservationID).First(&res).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, quotadomain.ErrReservationNotFound
			}
			return nil, err
		}
		return nil, quotadomain.ErrReservationResolved
	}

	var res quotadomain.Reservation
	if err := tx.Where("id = ?", reservationID).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}
