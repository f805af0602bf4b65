package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokengate/tokengate/internal/keys"
)

// Config holds fixed-window tuning parameters.
type Config struct {
	Quota  int
	Window time.Duration
}

// Limiter enforces a per-client fixed-window request quota using Redis
// counters. One counter key per client; the window resets itself when the
// key's TTL expires.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a fixed-window [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Window returns the configured window length, used by callers as a
// Retry-After hint.
func (l *Limiter) Window() time.Duration {
	return l.config.Window
}

// Allow admits or rejects one request from clientID.
//
// A client already at quota is rejected without touching the counter, so a
// blocked client cannot extend its own window. Otherwise the counter is
// incremented, and the first increment of a fresh window attaches the TTL.
// The check and the increment are two commands, not one transaction: a
// handful of racing requests may overshoot the quota by design — this is a
// soft limiter.
func (l *Limiter) Allow(ctx context.Context, clientID string) error {
	key := keys.RateLimit(clientID)

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.Quota) {
		return ErrRateLimited
	}

	count, err = l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set once, alongside the first
	// increment, and never refreshed by later requests.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}
