// Package tokengate manages the short-lived, single-use, and rotating
// security tokens behind a web application's authentication endpoints:
// refresh-token rotation, email-verification and password-reset tokens,
// token revocation, and per-client request rate limiting.
//
// All durable state lives in Redis; the process itself holds no token state
// and no locks. Correctness under concurrent requests rests entirely on
// single-key atomic Redis operations: SET-with-TTL, GET, DEL, GETDEL, INCR,
// and EXPIRE. The [Engine] is the only entry point; construct one with [New]
// and share it across request handlers.
//
// # Failure posture
//
// The store being unreachable means different things per component. Token
// validation fails closed — a token whose validity cannot be confirmed is
// rejected with [ErrStoreUnavailable]. The rate limiter fails open — requests
// are admitted, and every fail-open admission is logged and counted so
// operators can alert on it.
//
// # Sub-packages
//
//   - jwt — short-lived HS256 access tokens minted at login and refresh
//   - password — argon2id hashing for the password-reset flow
//   - middleware — net/http rate-limit and bearer-token guards
//   - pgstore — pgx-backed user identity store with embedded migrations
//   - mail — SMTP sender consumed by the background delivery queue
//   - httpapi — HTTP handlers wiring the engine to routes
package tokengate
