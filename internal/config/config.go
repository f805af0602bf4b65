// Package config loads the service configuration from the environment.
// Missing required variables and malformed tunables fail startup; unset
// tunables fall back to defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
	ErrInvalidEnvValue    = errors.New("malformed environment variable")
	ErrInvalidJWTSecret   = errors.New("JWT_SECRET must be at least 32 bytes")
)

// ServiceConfig is everything the daemon needs to start.
type ServiceConfig struct {
	HTTPPort    string
	RedisAddr   string
	RedisDB     int
	DatabaseURL string

	JWTSecret string
	AccessTTL time.Duration
	Issuer    string

	RefreshTTL      time.Duration
	VerificationTTL time.Duration

	RateLimitQuota  int
	RateLimitWindow time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailBaseURL  string

	LogLevel    string
	LogFilePath string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the environment. JWT_SECRET, REDIS_ADDR, DATABASE_URL and the
// SMTP settings are required; everything else has a default. A tunable that
// is set but unparseable is an error, not a fallback.
func Load() (ServiceConfig, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return ServiceConfig{}, err
	}
	if len(jwtSecret) < 32 {
		return ServiceConfig{}, fmt.Errorf("%w: got %d bytes", ErrInvalidJWTSecret, len(jwtSecret))
	}

	redisAddr, err := mustEnv("REDIS_ADDR")
	if err != nil {
		return ServiceConfig{}, err
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return ServiceConfig{}, err
	}

	smtpHost, err := mustEnv("SMTP_HOST")
	if err != nil {
		return ServiceConfig{}, err
	}
	smtpUsername, err := mustEnv("SMTP_USERNAME")
	if err != nil {
		return ServiceConfig{}, err
	}
	smtpPassword, err := mustEnv("SMTP_PASSWORD")
	if err != nil {
		return ServiceConfig{}, err
	}

	var p envParser
	cfg := ServiceConfig{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		RedisAddr:   redisAddr,
		RedisDB:     p.integer("REDIS_DB", 0),
		DatabaseURL: databaseURL,

		JWTSecret: jwtSecret,
		AccessTTL: p.duration("ACCESS_TOKEN_TTL", 30*time.Minute),
		Issuer:    getEnv("JWT_ISSUER", "tokengate"),

		RefreshTTL:      p.duration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		VerificationTTL: p.duration("VERIFICATION_TOKEN_TTL", 24*time.Hour),

		RateLimitQuota:  p.integer("RATE_LIMIT_QUOTA", 100),
		RateLimitWindow: p.duration("RATE_LIMIT_WINDOW", time.Minute),

		SMTPHost:     smtpHost,
		SMTPPort:     p.integer("SMTP_PORT", 465),
		SMTPUsername: smtpUsername,
		SMTPPassword: smtpPassword,
		MailFrom:     getEnv("MAIL_FROM", smtpUsername),
		MailBaseURL:  getEnv("MAIL_BASE_URL", "http://localhost:8080"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFilePath: getEnv("LOG_FILE", ""),

		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	if p.err != nil {
		return ServiceConfig{}, p.err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredEnv, key)
	}
	return v, nil
}

// envParser reads tunables, recording the first malformed value it sees. A
// typo in a set variable fails startup rather than silently running with the
// default.
type envParser struct {
	err error
}

func (p *envParser) fail(key, value string, parseErr error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidEnvValue, key, value, parseErr)
	}
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *envParser) integer(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return i
}
