package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/observability/logger"
	"github.com/autogenlabs-dev/tokengate/internal/observability/metrics"
)

type EngineParam struct {
	fx.In

	Cfg         config.Config
	HTTPMetrics *metrics.HTTPMetrics
}

func NewEngine(p EngineParam) *gin.Engine {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(p.HTTPMetrics))
	return engine
}
