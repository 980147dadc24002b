// Package outbox stages usage events for billing/analytics consumers.
// Rows are written in the same transaction as the usage record, so a
// consumer never sees an event whose durable record was rolled back.
package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventTypeUsageRecorded announces one resolved proxied request.
const EventTypeUsageRecorded = "usage.recorded"

// Event describes a usage event to store in the outbox.
type Event struct {
	AccountID snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// Outbox inserts usage events into the usage_outbox table.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event using an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.AccountID == 0 {
		return errors.New("invalid_account_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	dedupe := strings.TrimSpace(event.DedupeKey)
	var dedupeValue any
	if dedupe != "" {
		dedupeValue = dedupe
	}

	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_outbox (id, account_id, event_type, payload, dedupe_key, published, created_at)
		 VALUES (?, ?, ?, ?, ?, false, ?)
		 ON CONFLICT (account_id, dedupe_key) DO NOTHING`,
		o.genID.Generate(),
		event.AccountID,
		name,
		payload,
		dedupeValue,
		now,
	).Error
}
