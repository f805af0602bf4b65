// Package middleware provides net/http wrappers around the engine: the
// rate-limit gate that fronts every route and the bearer-token guard for
// protected ones.
package middleware

import (
	"net"
	"net/http"
	"strconv"

	tokengate "github.com/tokengate/tokengate"
)

// ClientKeyFunc extracts the rate-limit identity from a request.
type ClientKeyFunc func(r *http.Request) string

// ClientIP keys the limiter by remote IP, ignoring the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit gates every request through the engine's fixed-window limiter.
// It is intended to be the outermost wrapper: nothing else runs for a
// rejected request. Rejections answer 429 with a Retry-After hint, a status
// a client can tell apart from any authentication failure.
func RateLimit(engine *tokengate.Engine, clientKey ClientKeyFunc) func(http.Handler) http.Handler {
	if clientKey == nil {
		clientKey = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := engine.CheckRateLimit(r.Context(), clientKey(r)); err != nil {
				w.Header().Set("Retry-After", strconv.Itoa(engine.RateLimitWindow()))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
