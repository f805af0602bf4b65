// Command tokengated runs the token service: Redis-backed refresh and
// verification token state, Postgres user storage, SMTP delivery, and the
// HTTP API in front of it all.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	tokengate "github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/httpapi"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/logger"
	"github.com/tokengate/tokengate/mail"
	"github.com/tokengate/tokengate/pgstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tokengated: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFilePath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	users, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer users.Close()
	if err := users.Migrate(ctx); err != nil {
		return err
	}

	sender, err := mail.NewSMTPSender(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return err
	}

	engine, err := tokengate.NewBuilder().
		WithConfig(tokengate.Config{
			Refresh:      tokengate.RefreshConfig{TTL: cfg.RefreshTTL},
			Verification: tokengate.VerificationConfig{TTL: cfg.VerificationTTL},
			RateLimit: tokengate.RateLimitConfig{
				Quota:  cfg.RateLimitQuota,
				Window: cfg.RateLimitWindow,
			},
			JWT: tokengate.JWTConfig{
				Secret:    []byte(cfg.JWTSecret),
				AccessTTL: cfg.AccessTTL,
				Issuer:    cfg.Issuer,
			},
			Mail: tokengate.MailConfig{
				BaseURL: cfg.MailBaseURL,
				From:    cfg.MailFrom,
			},
		}).
		WithRedis(rdb).
		WithUserProvider(users).
		WithMailSender(sender).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpapi.NewRouter(engine, log, cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
