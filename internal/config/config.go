// Package config loads service configuration from environment
// variables (TOKENGATE_*) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type OIDCConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	JWKSURL  string        `mapstructure:"jwks_url"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LegacyJWTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

type AuthConfig struct {
	OIDC         OIDCConfig      `mapstructure:"oidc"`
	Legacy       LegacyJWTConfig `mapstructure:"legacy"`
	ClockSkew    time.Duration   `mapstructure:"clock_skew"`
	KeyCacheTTL  time.Duration   `mapstructure:"key_cache_ttl"`
	KeyCacheSize int             `mapstructure:"key_cache_size"`
}

// TierConfig sets the per-tier ceilings.
type TierConfig struct {
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute"`
	QuotaLimit         int64 `mapstructure:"quota_limit"`
}

type QuotaConfig struct {
	// DefaultEstimate is the reserve-time upper bound when a request
	// does not declare max_tokens.
	DefaultEstimate    int64         `mapstructure:"default_estimate"`
	ReservationTimeout time.Duration `mapstructure:"reservation_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	PeriodDays         int           `mapstructure:"period_days"`
}

// VendorConfig describes one upstream LLM vendor.
type VendorConfig struct {
	Name     string        `mapstructure:"name"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Fallback string        `mapstructure:"fallback"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	ExporterEndpoint string  `mapstructure:"exporter_endpoint"`
	ExporterProtocol string  `mapstructure:"exporter_protocol"`
	SamplingRatio    float64 `mapstructure:"sampling_ratio"`
}

type Config struct {
	Environment string                `mapstructure:"environment"`
	LogLevel    string                `mapstructure:"log_level"`
	Server      ServerConfig          `mapstructure:"server"`
	Database    DatabaseConfig        `mapstructure:"database"`
	Redis       RedisConfig           `mapstructure:"redis"`
	Auth        AuthConfig            `mapstructure:"auth"`
	Quota       QuotaConfig           `mapstructure:"quota"`
	Tiers       map[string]TierConfig `mapstructure:"tiers"`
	Vendors     []VendorConfig        `mapstructure:"vendors"`
	Tracing     TracingConfig         `mapstructure:"tracing"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Tier returns the tier config, falling back to the free tier.
func (c Config) Tier(name string) TierConfig {
	if tier, ok := c.Tiers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tier
	}
	return c.Tiers["free"]
}

// Load reads configuration from the optional file at path and from
// TOKENGATE_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TOKENGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("auth.clock_skew", 5*time.Second)
	v.SetDefault("auth.key_cache_ttl", 30*time.Second)
	v.SetDefault("auth.oidc.cache_ttl", 15*time.Minute)
	v.SetDefault("quota.default_estimate", int64(1024))
	v.SetDefault("quota.reservation_timeout", 5*time.Minute)
	v.SetDefault("quota.sweep_interval", time.Minute)
	v.SetDefault("quota.period_days", 30)
	v.SetDefault("tracing.sampling_ratio", 0.1)
	v.SetDefault("tiers", map[string]TierConfig{
		"free":       {RateLimitPerMinute: 60, QuotaLimit: 10_000},
		"pro":        {RateLimitPerMinute: 600, QuotaLimit: 1_000_000},
		"enterprise": {RateLimitPerMinute: 6_000, QuotaLimit: 100_000_000},
	})
}

// Validate rejects configurations that cannot serve traffic.
func (c Config) Validate() error {
	if c.Auth.OIDC.Enabled {
		if strings.TrimSpace(c.Auth.OIDC.JWKSURL) == "" {
			return errors.New("auth.oidc.jwks_url is required when OIDC is enabled")
		}
		if strings.TrimSpace(c.Auth.OIDC.Issuer) == "" {
			return errors.New("auth.oidc.issuer is required when OIDC is enabled")
		}
		if strings.TrimSpace(c.Auth.OIDC.Audience) == "" {
			return errors.New("auth.oidc.audience is required when OIDC is enabled")
		}
	}
	if c.Auth.Legacy.Enabled && len(c.Auth.Legacy.Secret) < 32 {
		return errors.New("auth.legacy.secret must be at least 32 bytes")
	}
	if len(c.Vendors) == 0 {
		return errors.New("at least one vendor must be configured")
	}
	seen := make(map[string]struct{}, len(c.Vendors))
	for _, vendor := range c.Vendors {
		name := strings.ToLower(strings.TrimSpace(vendor.Name))
		if name == "" {
			return errors.New("vendor name must not be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate vendor %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(vendor.BaseURL) == "" {
			return fmt.Errorf("vendor %q is missing base_url", name)
		}
	}
	for _, vendor := range c.Vendors {
		fallback := strings.ToLower(strings.TrimSpace(vendor.Fallback))
		if fallback == "" {
			continue
		}
		if _, ok := seen[fallback]; !ok {
			return fmt.Errorf("vendor %q falls back to unknown vendor %q", vendor.Name, fallback)
		}
	}
	for name, tier := range c.Tiers {
		if tier.RateLimitPerMinute <= 0 {
			return fmt.Errorf("tier %q has non-positive rate limit", name)
		}
		if tier.QuotaLimit <= 0 {
			return fmt.Errorf("tier %q has non-positive quota limit", name)
		}
	}
	return nil
}
