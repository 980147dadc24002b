package apikey

import (
	"go.uber.org/fx"

	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
	"github.com/autogenlabs-dev/tokengate/internal/apikey/repository"
	"github.com/autogenlabs-dev/tokengate/internal/apikey/service"
	"github.com/autogenlabs-dev/tokengate/internal/cache"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(clk clock.Clock) cache.Cache[string, apikeydomain.APIKey] {
		return cache.NewTTLCache[string, apikeydomain.APIKey](clk)
	}),
	fx.Provide(service.New),
)
