package proxy

import (
	"go.uber.org/fx"

	"github.com/autogenlabs-dev/tokengate/internal/provider"
	quotaservice "github.com/autogenlabs-dev/tokengate/internal/quota/service"
	"github.com/autogenlabs-dev/tokengate/internal/ratelimit"
	usageservice "github.com/autogenlabs-dev/tokengate/internal/usage/service"
)

var Module = fx.Module("proxy.pipeline",
	fx.Provide(func(l *ratelimit.Limiter) RateChecker { return l }),
	fx.Provide(func(l *quotaservice.Ledger) QuotaLedger { return l }),
	fx.Provide(func(r *provider.Router) ProviderRouter { return r }),
	fx.Provide(func(s *usageservice.Service) UsageRecorder { return s }),
	fx.Provide(NewPipeline),
)
