// Package service records resolved proxied requests durably and feeds
// the outbox consumed by billing.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/autogenlabs-dev/tokengate/internal/clock"
	usagedomain "github.com/autogenlabs-dev/tokengate/internal/usage/domain"
	"github.com/autogenlabs-dev/tokengate/internal/usage/outbox"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Repo   usagedomain.Repository
	Outbox *outbox.Outbox
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	genID  *snowflake.Node
	repo   usagedomain.Repository
	outbox *outbox.Outbox
}

func New(p ServiceParam) *Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("usage.service"),
		clock:  p.Clock,
		genID:  p.GenID,
		repo:   p.Repo,
		outbox: p.Outbox,
	}
}

// Record is one resolved proxied request to persist.
type Record struct {
	AccountID     snowflake.ID
	Provider      string
	Model         string
	Units         int64
	Outcome       string
	ReservationID string
	Metadata      map[string]any
}

// Append persists the usage event and its outbox entry in one
// transaction. The reservation id doubles as the dedupe key, so a
// retried append for the same request stays a single billing event.
func (s *Service) Append(ctx context.Context, rec Record) error {
	outcome := strings.TrimSpace(rec.Outcome)
	if outcome == "" {
		outcome = usagedomain.OutcomeSuccess
	}

	event := &usagedomain.UsageEvent{
		ID:            s.genID.Generate(),
		AccountID:     rec.AccountID,
		Provider:      rec.Provider,
		Model:         rec.Model,
		Units:         rec.Units,
		Outcome:       outcome,
		ReservationID: rec.ReservationID,
		Metadata:      datatypes.JSONMap(rec.Metadata),
		CreatedAt:     s.clock.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertTx(ctx, tx, event); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, outbox.Event{
			AccountID: rec.AccountID,
			Type:      outbox.EventTypeUsageRecorded,
			Payload: map[string]any{
				"provider":       rec.Provider,
				"model":          rec.Model,
				"units":          rec.Units,
				"outcome":        outcome,
				"reservation_id": rec.ReservationID,
			},
			DedupeKey: rec.ReservationID,
		})
	})
	if err != nil {
		s.log.Error("failed to record usage",
			zap.String("account_id", rec.AccountID.String()),
			zap.String("reservation_id", rec.ReservationID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// List returns an account's usage events, newest first.
func (s *Service) List(ctx context.Context, accountID snowflake.ID, since time.Time, limit int) ([]usagedomain.UsageEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByAccount(ctx, accountID, since, limit)
}

// Totals sums an account's committed units per outcome.
func (s *Service) Totals(ctx context.Context, accountID snowflake.ID, since time.Time) (map[string]int64, error) {
	return s.repo.TotalsByAccount(ctx, accountID, since)
}
