// Package rate implements the Redis-backed fixed-window request limiter.
//
// # Window semantics
//
// One counter per client under the rl: prefix (see internal/keys). A request
// is rejected when the counter has already reached the quota; otherwise it is
// INCRed, and the first increment of a window attaches the window TTL. When
// the TTL fires the key vanishes and the next request starts a fresh window
// at count 1.
//
// The GET/INCR pair is deliberately not transactional: bounded overshoot
// under contention is accepted. The fail-open decision on backend outage is
// NOT taken here — this package reports ErrRedisUnavailable and the engine
// decides what that means.
package rate
