package tokengate

import (
	"context"
	"errors"

	"github.com/tokengate/tokengate/internal/metrics"
	"github.com/tokengate/tokengate/internal/rate"
)

// CheckRateLimit admits or rejects one request from clientID against the
// fixed-window quota. It is meant to run before any other handler logic.
//
// Only [ErrRateLimited] means reject. When the counter store is unreachable
// the limiter fails open: the request is admitted, the admission is logged at
// warn level, and the fail-open counter is incremented so the condition is
// visible to alerting. Availability wins over strict enforcement here, the
// opposite posture from token validation.
func (e *Engine) CheckRateLimit(ctx context.Context, clientID string) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotReady
	}

	err := e.limiter.Allow(ctx, clientID)
	switch {
	case err == nil:
		metrics.RateLimitDecisions.WithLabelValues("allow").Inc()
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		metrics.RateLimitDecisions.WithLabelValues("reject").Inc()
		return ErrRateLimited
	case errors.Is(err, rate.ErrRedisUnavailable):
		metrics.RateLimitFailOpen.Inc()
		e.log.WarnContext(ctx, "rate limiter failing open: counter store unreachable", "err", err)
		return nil
	default:
		return err
	}
}
