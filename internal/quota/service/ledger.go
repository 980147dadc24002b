// Package service implements the quota ledger: atomic reserve, commit
// and release of token units per account per billing period.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
)

type LedgerParam struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Repo    quotadomain.Repository
	Metrics *metrics.PipelineMetrics
}

// Ledger hands out reservations against an account's period quota.
// Every reservation it returns must be resolved through Commit or
// Release; the sweep worker is the backstop for the ones that aren't.
type Ledger struct {
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.QuotaConfig
	repo    quotadomain.Repository
	metrics *metrics.PipelineMetrics
}

func New(p LedgerParam) *Ledger {
	return &Ledger{
		log:     p.Log.Named("quota.ledger"),
		clock:   p.Clock,
		cfg:     p.Cfg.Quota,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Reserve holds an upper-bound estimate of units for one request.
// The period boundary is evaluated lazily here, so a dormant account
// still resets on its next request.
func (l *Ledger) Reserve(ctx context.Context, accountID snowflake.ID, estimate int64) (*quotadomain.Reservation, error) {
	units := estimate
	if units <= 0 {
		units = l.cfg.DefaultEstimate
	}

	account, err := l.repo.FindAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, quotadomain.ErrAccountInactive
	}

	now := l.clock.Now()
	if err := l.maybeRollover(ctx, account, now); err != nil {
		return nil, err
	}

	res := &quotadomain.Reservation{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Units:     units,
		Status:    quotadomain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(l.cfg.ReservationTimeout),
	}
	if err := l.repo.Reserve(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Commit charges the provider-reported unit count against the account
// and retires the reservation. The reserved estimate is discarded;
// actual is authoritative.
func (l *Ledger) Commit(ctx context.Context, reservationID string, actual int64) (*quotadomain.CommitResult, error) {
	if actual < 0 {
		actual = 0
	}
	result, err := l.repo.Commit(ctx, reservationID, actual)
	if err != nil {
		return nil, err
	}
	if result.Overage {
		l.metrics.IncQuotaOverage()
		l.log.Warn("account pushed past quota limit",
			zap.String("account_id", result.AccountID.String()),
			zap.String("reservation_id", reservationID),
			zap.Int64("units", actual),
		)
	}
	return result, nil
}

// Release returns a reservation's units to the pool. A reservation
// that was already resolved is not an error: a cancellation racing the
// completion signal may lose to the commit.
func (l *Ledger) Release(ctx context.Context, reservationID string) error {
	err := l.repo.Release(ctx, reservationID)
	if errors.Is(err, quotadomain.ErrReservationResolved) {
		l.log.Debug("release skipped, reservation already resolved",
			zap.String("reservation_id", reservationID))
		return nil
	}
	return err
}

// Remaining reports the headroom left in the account's current period.
func (l *Ledger) Remaining(ctx context.Context, accountID snowflake.ID) (int64, error) {
	account, err := l.repo.FindAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.QuotaRemaining(), nil
}

func (l *Ledger) maybeRollover(ctx context.Context, account *accountdomain.Account, now time.Time) error {
	period := time.Duration(l.cfg.PeriodDays) * 24 * time.Hour
	if period <= 0 {
		return nil
	}

	newStart := account.PeriodStart
	for !newStart.Add(period).After(now) {
		newStart = newStart.Add(period)
	}
	if newStart.Equal(account.PeriodStart) {
		return nil
	}

	if err := l.repo.RolloverPeriod(ctx, account.ID, account.PeriodStart, newStart); err != nil {
		return err
	}
	l.log.Info("quota period rolled over",
		zap.String("account_id", account.ID.String()),
		zap.Time("period_start", newStart),
	)
	account.PeriodStart = newStart
	account.QuotaConsumed = 0
	account.OverLimit = false
	return nil
}
