// Package server exposes the proxy pipeline and its management
// surface over HTTP.
package server

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
	apikeyservice "github.com/autogenlabs-dev/tokengate/internal/apikey/service"
	"github.com/autogenlabs-dev/tokengate/internal/auth"
	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/provider"
	"github.com/autogenlabs-dev/tokengate/internal/proxy"
	quotaservice "github.com/autogenlabs-dev/tokengate/internal/quota/service"
	usagedomain "github.com/autogenlabs-dev/tokengate/internal/usage/domain"
	usageservice "github.com/autogenlabs-dev/tokengate/internal/usage/service"
)

// Narrow views of the services the handlers drive.

type CredentialVerifier interface {
	Classify(raw string) auth.Credential
	Verify(ctx context.Context, cred auth.Credential) (*auth.Claims, error)
}

type KeyManager interface {
	Create(ctx context.Context, accountID snowflake.ID, name string, expiresAt *time.Time) (*apikeyservice.CreateResult, error)
	List(ctx context.Context, accountID snowflake.ID) ([]apikeydomain.APIKey, error)
	Revoke(ctx context.Context, accountID, id snowflake.ID) error
}

type UsageReader interface {
	List(ctx context.Context, accountID snowflake.ID, since time.Time, limit int) ([]usagedomain.UsageEvent, error)
	Totals(ctx context.Context, accountID snowflake.ID, since time.Time) (map[string]int64, error)
}

type QuotaReader interface {
	Remaining(ctx context.Context, accountID snowflake.ID) (int64, error)
}

type PipelineExecutor interface {
	Execute(ctx context.Context, req *proxy.Request) (*proxy.Result, error)
}

type ProviderCatalog interface {
	Vendors() []provider.VendorInfo
	Models() []string
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	DB        *gorm.DB
	Engine    *gin.Engine
	Verifier  *auth.Verifier
	Accounts  accountdomain.Service
	Keys      *apikeyservice.Service
	Usage     *usageservice.Service
	Ledger    *quotaservice.Ledger
	Pipeline  *proxy.Pipeline
	Providers *provider.Router
}

type Server struct {
	log       *zap.Logger
	cfg       config.Config
	db        *gorm.DB
	engine    *gin.Engine
	verifier  CredentialVerifier
	accounts  accountdomain.Service
	keys      KeyManager
	usage     UsageReader
	ledger    QuotaReader
	pipeline  PipelineExecutor
	providers ProviderCatalog
}

func NewServer(p Params) *Server {
	return &Server{
		log:       p.Log.Named("server"),
		cfg:       p.Cfg,
		db:        p.DB,
		engine:    p.Engine,
		verifier:  p.Verifier,
		accounts:  p.Accounts,
		keys:      p.Keys,
		usage:     p.Usage,
		ledger:    p.Ledger,
		pipeline:  p.Pipeline,
		providers: p.Providers,
	}
}

func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := s.engine.Group("/", s.Authenticated())

	proxyGroup := authed.Group("/proxy")
	proxyGroup.POST("/chat", s.ProxyChat)
	proxyGroup.POST("/completions", s.ProxyCompletions)
	proxyGroup.POST("/embeddings", s.ProxyEmbeddings)
	proxyGroup.GET("/models", s.ListModels)
	proxyGroup.GET("/providers", s.ListProviders)

	v1 := authed.Group("/v1")
	v1.GET("/me", s.GetMe)
	v1.GET("/usage", s.ListUsage)
	v1.POST("/api_keys", s.CreateAPIKey)
	v1.GET("/api_keys", s.ListAPIKeys)
	v1.DELETE("/api_keys/:id", s.RevokeAPIKey)
}
