package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	apikeyservice "github.com/autogenlabs-dev/tokengate/internal/apikey/service"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
)

var Module = fx.Module("auth",
	fx.Provide(func(cfg config.Config, clk clock.Clock, log *zap.Logger) *JWKSCache {
		fetcher := &HTTPJWKSFetcher{URL: cfg.Auth.OIDC.JWKSURL}
		return NewJWKSCache(fetcher, clk, cfg.Auth.OIDC.CacheTTL, log)
	}),
	fx.Provide(func(svc *apikeyservice.Service) KeyStore {
		return svc
	}),
	fx.Provide(func(cfg config.Config, jwks *JWKSCache, keys KeyStore, clk clock.Clock, log *zap.Logger) *Verifier {
		return NewVerifier(cfg.Auth, jwks, keys, clk, log)
	}),
)
