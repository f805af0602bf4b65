package tokengate

import (
	"errors"
	"time"
)

// Config carries every tunable the engine honors. TTLs, quota, and window
// have sensible defaults; the JWT secret does not and must be provided.
type Config struct {
	Refresh      RefreshConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	JWT          JWTConfig
	Mail         MailConfig
}

// RefreshConfig controls long-lived refresh tokens.
type RefreshConfig struct {
	TTL time.Duration
}

// VerificationConfig controls single-use verification tokens.
type VerificationConfig struct {
	TTL time.Duration
}

// RateLimitConfig controls the per-client fixed window.
type RateLimitConfig struct {
	Quota  int
	Window time.Duration
}

// JWTConfig controls the access tokens minted at login and refresh.
// Secret is required, at least 32 bytes, and never defaulted.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// MailConfig controls the background delivery queue. BaseURL is the public
// origin embedded in token-bearing links.
type MailConfig struct {
	BaseURL      string
	From         string
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

const (
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultVerificationTTL = 24 * time.Hour
	defaultRateQuota       = 100
	defaultRateWindow      = 60 * time.Second
	defaultAccessTTL       = 30 * time.Minute
	defaultMailQueueSize   = 256
	defaultMailAttempts    = 3
	defaultMailBackoff     = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Refresh.TTL <= 0 {
		c.Refresh.TTL = defaultRefreshTTL
	}
	if c.Verification.TTL <= 0 {
		c.Verification.TTL = defaultVerificationTTL
	}
	if c.RateLimit.Quota <= 0 {
		c.RateLimit.Quota = defaultRateQuota
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = defaultRateWindow
	}
	if c.JWT.AccessTTL <= 0 {
		c.JWT.AccessTTL = defaultAccessTTL
	}
	if c.Mail.QueueSize <= 0 {
		c.Mail.QueueSize = defaultMailQueueSize
	}
	if c.Mail.MaxAttempts <= 0 {
		c.Mail.MaxAttempts = defaultMailAttempts
	}
	if c.Mail.RetryBackoff <= 0 {
		c.Mail.RetryBackoff = defaultMailBackoff
	}
	return c
}

func (c Config) validate() error {
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT secret is required")
	}
	return nil
}
