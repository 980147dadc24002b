package provider

import (
	"go.uber.org/fx"

	"github.com/autogenlabs-dev/tokengate/internal/cache"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
)

var Module = fx.Module("provider",
	fx.Provide(func(clk clock.Clock) cache.Cache[string, Credential] {
		return cache.NewTTLCache[string, Credential](clk)
	}),
	fx.Provide(NewCredentialSource),
	fx.Provide(NewRouter),
)
