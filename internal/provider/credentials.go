package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/autogenlabs-dev/tokengate/internal/cache"
	"github.com/autogenlabs-dev/tokengate/internal/config"
)

// ErrNoCredential means neither the credential table nor the static
// configuration has a usable secret for the vendor.
var ErrNoCredential = errors.New("no_provider_credential")

// Credential is a vendor secret managed at runtime. Rows here win
// over the static per-vendor configuration, so keys can be rotated
// without a redeploy.
type Credential struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Vendor    string       `gorm:"type:text;not null" json:"vendor"`
	APIKey    string       `gorm:"not null" json:"-"`
	BaseURL   string       `gorm:"not null;default:''" json:"base_url"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

func (Credential) TableName() string { return "provider_credentials" }

// CredentialSource resolves the secret used to call a vendor,
// preferring the credential table and falling back to configuration.
type CredentialSource struct {
	db       *gorm.DB
	cfg      config.Config
	cache    cache.Cache[string, Credential]
	cacheTTL time.Duration
}

func NewCredentialSource(db *gorm.DB, cfg config.Config, c cache.Cache[string, Credential]) *CredentialSource {
	return &CredentialSource{
		db:       db,
		cfg:      cfg,
		cache:    c,
		cacheTTL: 5 * time.Minute,
	}
}

// Key returns the API key for a vendor.
func (s *CredentialSource) Key(ctx context.Context, vendor string) (string, error) {
	vendor = strings.ToLower(strings.TrimSpace(vendor))

	if cred, ok := s.cache.Get(vendor); ok {
		return cred.APIKey, nil
	}

	var cred Credential
	err := s.db.WithContext(ctx).
		Where("vendor = ? AND is_active", vendor).
		First(&cred).Error
	if err == nil {
		s.cache.Set(vendor, cred, s.cacheTTL)
		return cred.APIKey, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	for _, v := range s.cfg.Vendors {
		if strings.EqualFold(v.Name, vendor) && v.APIKey != "" {
			return v.APIKey, nil
		}
	}
	return "", ErrNoCredential
}
