package tokengate

import (
	"log/slog"

	"github.com/tokengate/tokengate/internal/rate"
	"github.com/tokengate/tokengate/internal/stores"
	"github.com/tokengate/tokengate/internal/token"
	"github.com/tokengate/tokengate/jwt"
	"github.com/tokengate/tokengate/password"
)

// Engine is the token and rate-limit state manager. It owns no in-process
// mutable token state: every operation round-trips to Redis, and an Engine is
// safe for unbounded concurrent use.
type Engine struct {
	config       Config
	codec        *token.Codec
	refreshStore *stores.RefreshStore
	verifyStore  *stores.VerificationStore
	limiter      *rate.Limiter
	jwtManager   *jwt.Manager
	passwordHash *password.Hasher
	users        UserProvider
	mail         *mailDispatcher
	log          *slog.Logger
}

// Close drains the mail queue and stops its worker. Safe on a nil engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.mail != nil {
		e.mail.Close()
	}
}

// RateLimitWindow returns the configured window, used by HTTP middleware to
// populate Retry-After.
func (e *Engine) RateLimitWindow() int {
	if e == nil {
		return 0
	}
	return int(e.config.RateLimit.Window.Seconds())
}

// ParseAccessToken verifies a stateless access token and returns its subject.
func (e *Engine) ParseAccessToken(tokenStr string) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// MailDropped reports how many mail jobs were discarded because the queue
// was full. Nonzero values are an operational signal, not a request error.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mail == nil {
		return 0
	}
	return e.mail.Dropped()
}
