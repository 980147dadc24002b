// Package observability wires logging, metrics, and tracing.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/observability/logger"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
	"github.com/autogenlabs-dev/tokengate/internal/observability/tracing"
)

const serviceName = "tokengate"

var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.LogLevel,
			Environment: cfg.Environment,
		})
	}),
	fx.Invoke(func(log *zap.Logger) {
		zap.ReplaceGlobals(log)
	}),
	fx.Provide(func(cfg config.Config) metrics.Config {
		return metrics.Config{
			ServiceName: serviceName,
			Environment: cfg.Environment,
		}
	}),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
		_, err := tracing.NewProvider(lc, tracing.Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      serviceName,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}, log)
		return err
	}),
	fx.Provide(func(mcfg metrics.Config) (*metrics.HTTPMetrics, error) {
		return metrics.NewHTTPMetrics(mcfg, otel.GetMeterProvider())
	}),
	fx.Provide(func(mcfg metrics.Config) *metrics.PipelineMetrics {
		return metrics.PipelineWithConfig(mcfg)
	}),
)
