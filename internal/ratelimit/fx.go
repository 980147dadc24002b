package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
)

var Module = fx.Module("ratelimit",
	fx.Provide(provideStore),
	fx.Provide(NewLimiter),
)

type StoreParam struct {
	fx.In

	Lc    fx.Lifecycle
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
}

func provideStore(p StoreParam) CounterStore {
	if !p.Cfg.Redis.Enabled {
		p.Log.Info("rate limit counters are in-process, single instance only")
		return NewMemoryStore(p.Clock)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Cfg.Redis.Addr,
		Password: p.Cfg.Redis.Password,
		DB:       p.Cfg.Redis.DB,
	})
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisStore(client)
}
