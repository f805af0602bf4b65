package tokengate

import (
	"errors"

	"github.com/tokengate/tokengate/internal/token"
)

var (
	// ErrStoreUnavailable is returned when the key-value store cannot be
	// reached. Token validation treats this as a rejection (fail closed).
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrTokenNotFound is returned for tokens that are absent, already
	// consumed, or revoked. It is a routine outcome, never logged as an error.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is returned when a record outlives its recorded expiry,
	// which the store's own TTL should normally make unreachable.
	ErrTokenExpired = errors.New("token expired")
	// ErrRateLimited is returned when a client exceeds its window quota.
	// It is distinguishable from authentication failures so callers can
	// answer with a retry-after response.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidCredentials is returned by Login for a bad email/password
	// pair. It never distinguishes unknown users from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or partially constructed engine.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ErrEntropyUnavailable is returned when the secure random source cannot be
// read. It is fatal at startup: the process must not serve traffic without it.
var ErrEntropyUnavailable = token.ErrEntropyUnavailable
