// Package domain contains persistence models for the usage stream
// consumed by billing and analytics.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outcomes of a proxied request. A billable error is one the provider
// charged tokens for despite failing the request downstream.
const (
	OutcomeSuccess       = "success"
	OutcomeError         = "error"
	OutcomeBillableError = "billable_error"
)

// UsageEvent is the durable record of one resolved proxied request.
type UsageEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID      `gorm:"not null" json:"account_id"`
	Provider      string            `gorm:"type:text;not null" json:"provider"`
	Model         string            `gorm:"type:text;not null" json:"model"`
	Units         int64             `gorm:"not null" json:"units"`
	Outcome       string            `gorm:"type:text;not null" json:"outcome"`
	ReservationID string            `gorm:"type:text;not null;default:''" json:"reservation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_events" }
