package token

import (
	"os"
	"time"
)

// Config defines runtime configuration for token issuance.
//
// The two secrets must differ; sharing one key across token classes would
// let an access token be replayed as a refresh token.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// AccessSecret signs access tokens (HS256).
	AccessSecret []byte

	// RefreshSecret signs refresh tokens (HS256).
	RefreshSecret []byte

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration

	// ClockSkew is the allowed time skew during verification.
	ClockSkew time.Duration
}

// DefaultConfig returns the fixed lifetimes used in production: one hour for
// access tokens, thirty days for refresh tokens.
func DefaultConfig() Config {
	return Config{
		Issuer:     "aegis",
		AccessTTL:  time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - AEGIS_ACCESS_TOKEN_SECRET
//   - AEGIS_REFRESH_TOKEN_SECRET (must differ from the access secret)
//
// Optional (durations must be valid Go duration strings):
//   - AEGIS_TOKEN_ISSUER
//   - AEGIS_ACCESS_TOKEN_TTL
//   - AEGIS_REFRESH_TOKEN_TTL
//   - AEGIS_TOKEN_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AEGIS_TOKEN_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("AEGIS_ACCESS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("AEGIS_REFRESH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("AEGIS_TOKEN_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = []byte(os.Getenv("AEGIS_ACCESS_TOKEN_SECRET"))
	cfg.RefreshSecret = []byte(os.Getenv("AEGIS_REFRESH_TOKEN_SECRET"))

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if len(c.AccessSecret) < 32 || len(c.RefreshSecret) < 32 {
		return ErrConfig
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return ErrConfig
	}
	return nil
}
