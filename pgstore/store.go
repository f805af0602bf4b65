// Package pgstore is the Postgres-backed user provider. It owns the users
// table and the schema migrations for it; token and rate-limit state stay
// in Redis.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	tokengate "github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/pgstore/migrations"
)

// ErrEmailTaken is returned by CreateUser when the email already exists.
var ErrEmailTaken = errors.New("email already registered")

const uniqueViolation = "23505"

// Store implements the engine's user provider on top of a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and returns a ready store. Migrations are not run
// here; call Migrate before serving traffic.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second
	cfg.ConnConfig.RuntimeParams = map[string]string{
		"application_name": "tokengate",
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateUser inserts a new unverified user and returns its generated ID.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	id := uuid.NewString()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, email, passwordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("insert user: %w", err)
	}

	return id, nil
}

// GetUserByEmail looks a user up by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (tokengate.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, verified FROM users WHERE email = $1`,
		email,
	)

	var user tokengate.UserRecord
	err := row.Scan(&user.UserID, &user.Email, &user.PasswordHash, &user.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tokengate.UserRecord{}, tokengate.ErrUserNotFound
		}
		return tokengate.UserRecord{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// UpdatePasswordHash replaces the stored hash for the given user.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tokengate.ErrUserNotFound
	}
	return nil
}

// MarkEmailVerified flips the verified flag for the given user.
func (s *Store) MarkEmailVerified(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET verified = TRUE WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tokengate.ErrUserNotFound
	}
	return nil
}

var _ tokengate.UserProvider = (*Store)(nil)
