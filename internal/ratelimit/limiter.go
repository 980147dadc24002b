package ratelimit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/autogenlabs-dev/tokengate/internal/config"
)

// Window is the fixed rate-limit window.
const Window = time.Minute

// Decision is the outcome of one rate check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter tells a rejected client how long to back off.
	RetryAfter time.Duration
}

type LimiterParam struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Store CounterStore
}

// Limiter applies the per-tier request ceiling before any quota work
// happens. It is deliberately cheaper than the ledger: one counter
// bump per request.
type Limiter struct {
	log   *zap.Logger
	cfg   config.Config
	store CounterStore
}

func NewLimiter(p LimiterParam) *Limiter {
	return &Limiter{
		log:   p.Log.Named("ratelimit"),
		cfg:   p.Cfg,
		store: p.Store,
	}
}

// Allow counts this request against the account's window. A counter
// store failure fails open: an unreachable Redis must not take the
// proxy down with it.
func (l *Limiter) Allow(ctx context.Context, accountID snowflake.ID, tier string) Decision {
	limit := l.cfg.Tier(tier).RateLimitPerMinute
	decision := Decision{
		Allowed:    true,
		Limit:      limit,
		Remaining:  limit,
		RetryAfter: Window,
	}

	count, err := l.store.Incr(ctx, "ratelimit:"+accountID.String(), Window)
	if err != nil {
		l.log.Warn("rate limit store unavailable, failing open",
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
		return decision
	}

	decision.Allowed = count <= int64(limit)
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	decision.Remaining = int(remaining)
	return decision
}
