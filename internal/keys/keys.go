// Package keys builds the Redis key for each persisted entity.
//
// Every entity type gets its own constructor and prefix, so a refresh token,
// a verification token, and a rate-limit counter can never collide even when
// they share the same raw value. Callers never format keys by hand.
package keys

const (
	refreshPrefix      = "rt"
	verificationPrefix = "vt"
	rateLimitPrefix    = "rl"
)

// Refresh returns the storage key for a refresh-token record.
func Refresh(token string) string {
	return refreshPrefix + ":" + token
}

// Verification returns the storage key for a verification-token record.
func Verification(token string) string {
	return verificationPrefix + ":" + token
}

// RateLimit returns the storage key for a client's window counter.
func RateLimit(clientID string) string {
	return rateLimitPrefix + ":" + clientID
}
