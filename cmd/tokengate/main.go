// @title           Tokengate API
// @version         1.0
// @description     Credential-gated LLM proxy with quota and usage accounting

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/autogenlabs-dev/tokengate/internal/account"
	"github.com/autogenlabs-dev/tokengate/internal/apikey"
	"github.com/autogenlabs-dev/tokengate/internal/auth"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
	"github.com/autogenlabs-dev/tokengate/internal/migration"
	"github.com/autogenlabs-dev/tokengate/internal/observability"
	"github.com/autogenlabs-dev/tokengate/internal/provider"
	"github.com/autogenlabs-dev/tokengate/internal/proxy"
	"github.com/autogenlabs-dev/tokengate/internal/quota"
	"github.com/autogenlabs-dev/tokengate/internal/ratelimit"
	"github.com/autogenlabs-dev/tokengate/internal/server"
	"github.com/autogenlabs-dev/tokengate/internal/usage"
	"github.com/autogenlabs-dev/tokengate/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),

		account.Module,
		apikey.Module,
		auth.Module,
		quota.Module,
		ratelimit.Module,
		provider.Module,
		usage.Module,
		proxy.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
