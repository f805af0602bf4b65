package tokengate

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by UserProvider implementations when no account
// matches. The engine maps it to uniform responses so callers cannot probe
// which identities exist.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is the account shape the engine needs from the identity store.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Verified     bool
}

// UserProvider is the identity-store boundary. The engine consults it only in
// orchestration flows (login, password reset, email verification); the token
// stores themselves never read or write credentials.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

// TokenPair is the result of a login or refresh: a stateless access token and
// the refresh token that can be exchanged for the next pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// MailMessage is one outbound email handed to the delivery queue.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// MailSender delivers a single message. Implementations are called from the
// queue worker, never from a request goroutine.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}
