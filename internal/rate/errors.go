package rate

import "errors"

var (
	// ErrRateLimited is returned when a client has exhausted its window quota.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when the counter backend cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
