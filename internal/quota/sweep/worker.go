// Package sweep reclaims quota reservations whose requests never
// resolved them, the safety net behind the pipeline's own cleanup.
package sweep

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
	"github.com/autogenlabs-dev/tokengate/internal/quota/service"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Repo    quotadomain.Repository
	Ledger  *service.Ledger
	Metrics *metrics.PipelineMetrics
	Config  Config `optional:"true"`
}

type Worker struct {
	log     *zap.Logger
	clock   clock.Clock
	repo    quotadomain.Repository
	ledger  *service.Ledger
	metrics *metrics.PipelineMetrics
	cfg     Config
}

func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	if p.Cfg.Quota.SweepInterval > 0 {
		cfg.PollInterval = p.Cfg.Quota.SweepInterval
	}
	return &Worker{
		log:     p.Log.Named("quota.sweep"),
		clock:   p.Clock,
		repo:    p.Repo,
		ledger:  p.Ledger,
		metrics: p.Metrics,
		cfg:     cfg,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(); err != nil {
			w.log.Warn("reservation sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce releases one batch of expired pending reservations and
// returns how many were swept.
func (w *Worker) RunOnce() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := w.repo.ExpiredPending(ctx, w.clock.Now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, row := range rows {
		if err := w.ledger.Release(ctx, row.ID); err != nil {
			w.log.Error("failed to release expired reservation",
				zap.String("reservation_id", row.ID),
				zap.String("account_id", row.AccountID.String()),
				zap.Error(err),
			)
			continue
		}
		w.metrics.IncSweptReservation()
		w.log.Warn("swept abandoned reservation",
			zap.String("reservation_id", row.ID),
			zap.String("account_id", row.AccountID.String()),
			zap.Int64("units", row.Units),
			zap.Time("expired_at", row.ExpiresAt),
		)
		swept++
	}
	return swept, nil
}
