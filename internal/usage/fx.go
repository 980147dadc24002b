package usage

import (
	"go.uber.org/fx"

	"github.com/autogenlabs-dev/tokengate/internal/usage/outbox"
	"github.com/autogenlabs-dev/tokengate/internal/usage/repository"
	"github.com/autogenlabs-dev/tokengate/internal/usage/service"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(outbox.NewOutbox),
	fx.Provide(service.New),
)
