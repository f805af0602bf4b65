package tokengate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newQuotaEngine(t *testing.T, rdb *redis.Client, quota int, window time.Duration) *Engine {
	t.Helper()

	cfg := testConfig()
	cfg.RateLimit = RateLimitConfig{Quota: quota, Window: window}

	engine, err := NewBuilder().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func TestRateLimitScenario(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := newQuotaEngine(t, rdb, 3, time.Minute)
	ctx := context.Background()

	// quota=3, window=60s: allow, allow, allow, then reject.
	for i := 1; i <= 3; i++ {
		if err := engine.CheckRateLimit(ctx, "A"); err != nil {
			t.Fatalf("request %d: expected allow, got %v", i, err)
		}
	}
	if err := engine.CheckRateLimit(ctx, "A"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("request 4: expected ErrRateLimited, got %v", err)
	}

	// After the window elapses the client is admitted again.
	mr.FastForward(61 * time.Second)
	if err := engine.CheckRateLimit(ctx, "A"); err != nil {
		t.Fatalf("request 5 after window: expected allow, got %v", err)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := newQuotaEngine(t, rdb, 3, time.Minute)
	mr.Close()

	// Store down: the limiter admits rather than blocking all traffic.
	if err := engine.CheckRateLimit(context.Background(), "A"); err != nil {
		t.Fatalf("expected fail-open allow, got %v", err)
	}
}

func TestRateLimitIsDistinguishableFromAuthFailure(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newQuotaEngine(t, rdb, 1, time.Minute)
	ctx := context.Background()

	if err := engine.CheckRateLimit(ctx, "A"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	err := engine.CheckRateLimit(ctx, "A")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("rate-limit rejection must not look like an auth failure")
	}
}
