// Package domain contains persistence models and digest helpers for
// static API keys.
package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// KeyPrefix distinguishes opaque API keys from JWTs on the wire.
const KeyPrefix = "ak_"

const keySecretBytes = 24

// APIKey belongs to exactly one account. The cleartext secret is
// returned once at creation; only the digest is stored.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID  snowflake.ID `gorm:"not null" json:"account_id"`
	Name       string       `gorm:"type:text;not null;default:''" json:"name"`
	KeyHash    string       `gorm:"type:text;not null;uniqueIndex:idx_api_keys_key_hash" json:"-"`
	KeyPreview string       `gorm:"type:text;not null" json:"key_preview"`
	IsActive   bool         `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt  *time.Time   `gorm:"" json:"expires_at,omitempty"`
	LastUsedAt *time.Time   `gorm:"" json:"last_used_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// Expired reports whether the key's optional expiry has passed.
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// HashAPIKey returns the storable one-way digest of a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a new random key in cleartext.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// Preview returns the short non-secret prefix stored for display.
func Preview(raw string) string {
	const visible = len(KeyPrefix) + 6
	if len(raw) <= visible {
		return raw
	}
	return raw[:visible]
}

// LooksLikeAPIKey reports whether a bearer credential carries the
// opaque key prefix rather than a JWT.
func LooksLikeAPIKey(credential string) bool {
	return strings.HasPrefix(strings.TrimSpace(credential), KeyPrefix)
}
