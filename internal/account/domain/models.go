// Package domain contains persistence models for canonical accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan tiers. Tier changes are written by the billing collaborator;
// this service only reads them.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Identity providers an external subject can originate from.
const (
	IdentityOIDC   = "oidc"
	IdentityLegacy = "legacy"
)

// Account is the canonical identity unified across all credential
// schemes. quota_consumed + quota_reserved never exceed quota_limit
// except for the single documented in-flight overage.
type Account struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PlanTier      string       `gorm:"type:text;not null;default:free" json:"plan_tier"`
	QuotaLimit    int64        `gorm:"not null" json:"quota_limit"`
	QuotaConsumed int64        `gorm:"not null;default:0" json:"quota_consumed"`
	QuotaReserved int64        `gorm:"not null;default:0" json:"-"`
	PeriodStart   time.Time    `gorm:"not null" json:"period_start"`
	OverLimit     bool         `gorm:"not null;default:false" json:"-"`
	IsActive      bool         `gorm:"not null;default:true" json:"-"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

func (Account) TableName() string { return "accounts" }

// QuotaRemaining is the headroom left in the current period.
func (a Account) QuotaRemaining() int64 {
	remaining := a.QuotaLimit - a.QuotaConsumed - a.QuotaReserved
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExternalIdentity links one identity-provider subject to an account.
// The (provider, subject) pair is unique system-wide.
type ExternalIdentity struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null" json:"account_id"`
	Provider  string       `gorm:"type:text;not null;uniqueIndex:idx_external_identities_provider_subject" json:"provider"`
	Subject   string       `gorm:"type:text;not null;uniqueIndex:idx_external_identities_provider_subject" json:"subject"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

func (ExternalIdentity) TableName() string { return "external_identities" }
