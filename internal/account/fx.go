package account

import (
	"go.uber.org/fx"

	"github.com/autogenlabs-dev/tokengate/internal/account/repository"
	"github.com/autogenlabs-dev/tokengate/internal/account/service"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
