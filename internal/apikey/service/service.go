package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
	"github.com/autogenlabs-dev/tokengate/internal/cache"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  apikeydomain.Repository
	Cache cache.Cache[string, apikeydomain.APIKey]
}

// Service is the key store: it owns hashing, lookup, and lifecycle of
// static API keys.
type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     apikeydomain.Repository
	cache    cache.Cache[string, apikeydomain.APIKey]
	cacheTTL time.Duration
}

func New(p ServiceParam) *Service {
	return &Service{
		log:      p.Log.Named("apikey.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		repo:     p.Repo,
		cache:    p.Cache,
		cacheTTL: p.Cfg.Auth.KeyCacheTTL,
	}
}

// CreateResult carries the cleartext secret exactly once.
type CreateResult struct {
	Key       apikeydomain.APIKey
	Cleartext string
}

func (s *Service) Create(ctx context.Context, accountID snowflake.ID, name string, expiresAt *time.Time) (*CreateResult, error) {
	cleartext, err := apikeydomain.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	key := apikeydomain.APIKey{
		ID:         s.genID.Generate(),
		AccountID:  accountID,
		Name:       strings.TrimSpace(name),
		KeyHash:    apikeydomain.HashAPIKey(cleartext),
		KeyPreview: apikeydomain.Preview(cleartext),
		IsActive:   true,
		ExpiresAt:  expiresAt,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, &key); err != nil {
		return nil, err
	}

	s.log.Info("created api key",
		zap.String("account_id", accountID.String()),
		zap.String("key_preview", key.KeyPreview),
	)
	return &CreateResult{Key: key, Cleartext: cleartext}, nil
}

// Verify digests the raw credential, looks it up, and checks the
// active flag and expiry. Hot lookups are served from the TTL cache.
func (s *Service) Verify(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !apikeydomain.LooksLikeAPIKey(raw) {
		return nil, apikeydomain.ErrInvalidKey
	}
	hash := apikeydomain.HashAPIKey(raw)

	key, cached := s.cache.Get(hash)
	if !cached {
		found, err := s.repo.FindByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		key = *found
		s.cache.Set(hash, key, s.cacheTTL)
	}

	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, apikeydomain.ErrInvalidKey
	}
	if !key.IsActive {
		return nil, apikeydomain.ErrRevoked
	}
	now := s.clock.Now()
	if key.Expired(now) {
		return nil, apikeydomain.ErrExpired
	}

	// Audit trail only; a failed update must not fail the request.
	if err := s.repo.TouchLastUsed(ctx, key.ID, now); err != nil {
		s.log.Warn("touch last_used failed", zap.Error(err))
	}
	return &key, nil
}

func (s *Service) List(ctx context.Context, accountID snowflake.ID) ([]apikeydomain.APIKey, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

func (s *Service) Revoke(ctx context.Context, accountID, id snowflake.ID) error {
	key, err := s.repo.FindByID(ctx, accountID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Revoke(ctx, accountID, id); err != nil {
		return err
	}
	s.cache.Delete(key.KeyHash)
	s.log.Info("revoked api key",
		zap.String("account_id", accountID.String()),
		zap.String("key_preview", key.KeyPreview),
	)
	return nil
}
