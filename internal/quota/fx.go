package quota

import (
	"context"

	"go.uber.org/fx"

	"github.com/autogenlabs-dev/tokengate/internal/quota/repository"
	"github.com/autogenlabs-dev/tokengate/internal/quota/service"
	"github.com/autogenlabs-dev/tokengate/internal/quota/sweep"
)

var Module = fx.Module("quota.ledger",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(sweep.NewWorker),
	fx.Invoke(runSweeper),
)

func runSweeper(lc fx.Lifecycle, worker *sweep.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
	})
}
