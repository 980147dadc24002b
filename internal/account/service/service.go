package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  accountdomain.Repository
}

type Service struct {
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock
	genID *snowflake.Node
	repo  accountdomain.Repository
}

func New(p ServiceParam) accountdomain.Service {
	return &Service{
		log:   p.Log.Named("account.service"),
		cfg:   p.Cfg,
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, provider, subject string) (*accountdomain.Account, error) {
	provider = strings.TrimSpace(provider)
	subject = strings.TrimSpace(subject)
	if provider != accountdomain.IdentityOIDC && provider != accountdomain.IdentityLegacy {
		return nil, accountdomain.ErrInvalidProvider
	}
	if subject == "" {
		return nil, accountdomain.ErrInvalidSubject
	}

	account, err := s.repo.FindBySubject(ctx, provider, subject)
	if err == nil {
		return checkActive(account)
	}
	if !errors.Is(err, accountdomain.ErrNotFound) {
		return nil, err
	}

	account = s.defaultAccount()
	identity := &accountdomain.ExternalIdentity{
		ID:       s.genID.Generate(),
		Provider: provider,
		Subject:  subject,
	}
	if createErr := s.repo.CreateWithIdentity(ctx, account, identity); createErr != nil {
		// Two first-time requests for the same subject can race; the
		// unique index on (provider, subject) makes the loser's insert
		// fail. The winner's row is authoritative.
		existing, lookupErr := s.repo.FindBySubject(ctx, provider, subject)
		if lookupErr == nil {
			return checkActive(existing)
		}
		return nil, createErr
	}

	s.log.Info("provisioned account",
		zap.String("account_id", account.ID.String()),
		zap.String("identity_provider", provider),
	)
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkActive(account)
}

func (s *Service) defaultAccount() *accountdomain.Account {
	tier := s.cfg.Tier(accountdomain.TierFree)
	now := s.clock.Now()
	return &accountdomain.Account{
		ID:          s.genID.Generate(),
		PlanTier:    accountdomain.TierFree,
		QuotaLimit:  tier.QuotaLimit,
		PeriodStart: now,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func checkActive(account *accountdomain.Account) (*accountdomain.Account, error) {
	if !account.IsActive {
		return nil, accountdomain.ErrDeactivated
	}
	return account, nil
}
