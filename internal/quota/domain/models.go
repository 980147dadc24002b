// Package domain defines the quota ledger's reservation records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reservation statuses. A pending reservation must always end up
// committed or released; the sweep reclaims the ones that don't.
const (
	StatusPending   = "pending"
	StatusCommitted = "committed"
	StatusReleased  = "released"
)

// Reservation is a provisional hold against an account's remaining
// quota for one in-flight request.
type Reservation struct {
	ID        string       `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null" json:"account_id"`
	Units     int64        `gorm:"not null" json:"units"`
	Status    string       `gorm:"type:text;not null;default:pending" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
}

func (Reservation) TableName() string { return "quota_reservations" }

// CommitResult reports the ledger state after a commit.
type CommitResult struct {
	AccountID snowflake.ID
	Units     int64
	Remaining int64
	// Overage is set when this commit pushed consumption past the
	// period limit for the first time.
	Overage bool
}
