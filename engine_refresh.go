package tokengate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tokengate/tokengate/internal/metrics"
	"github.com/tokengate/tokengate/internal/stores"
)

// IssueRefreshToken creates a refresh token for subject, stores its record
// with the configured TTL, and returns the opaque token string.
func (e *Engine) IssueRefreshToken(ctx context.Context, subject string) (string, error) {
	if e == nil || e.refreshStore == nil {
		return "", ErrEngineNotReady
	}

	tok, err := e.codec.Generate()
	if err != nil {
		return "", err
	}

	record := &stores.RefreshRecord{
		Subject:   subject,
		Status:    stores.RefreshStatusValid,
		ExpiresAt: time.Now().Add(e.config.Refresh.TTL).Unix(),
	}
	if err := e.refreshStore.Save(ctx, tok, record, e.config.Refresh.TTL); err != nil {
		return "", mapRefreshStoreError(err)
	}

	metrics.RefreshTokensIssued.Inc()
	return tok, nil
}

// ValidateRefreshToken checks a refresh token and returns its subject.
//
// A token that is absent or carries a revoked tombstone yields
// [ErrTokenNotFound]; a record that outlived its recorded expiry yields
// [ErrTokenExpired] even though the store's TTL should have evicted it (the
// check guards against clock skew between issuance and store TTL semantics).
// A store outage yields [ErrStoreUnavailable]: validation fails closed.
func (e *Engine) ValidateRefreshToken(ctx context.Context, tok string) (string, error) {
	if e == nil || e.refreshStore == nil {
		return "", ErrEngineNotReady
	}

	record, err := e.refreshStore.Get(ctx, tok)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrRefreshNotFound), errors.Is(err, stores.ErrRefreshCorrupt):
			metrics.RefreshValidations.WithLabelValues("not_found").Inc()
			e.log.InfoContext(ctx, "refresh token not found")
			return "", ErrTokenNotFound
		default:
			metrics.RefreshValidations.WithLabelValues("store_error").Inc()
			e.log.ErrorContext(ctx, "refresh validation failed closed", "err", err)
			return "", mapRefreshStoreError(err)
		}
	}

	if record.Status != stores.RefreshStatusValid {
		metrics.RefreshValidations.WithLabelValues("revoked").Inc()
		e.log.InfoContext(ctx, "refresh token revoked")
		return "", ErrTokenNotFound
	}
	if time.Now().Unix() > record.ExpiresAt {
		metrics.RefreshValidations.WithLabelValues("expired").Inc()
		e.log.InfoContext(ctx, "refresh token past recorded expiry")
		return "", ErrTokenExpired
	}

	metrics.RefreshValidations.WithLabelValues("valid").Inc()
	return record.Subject, nil
}

// RotateRefreshToken replaces oldToken with a fresh one bound to the same
// subject. The new record is durably written before the old one is deleted:
// a crash between the two writes leaves the old token still valid, never the
// client locked out. An unknown oldToken still yields a fresh token, treated
// as a new anonymous session; callers reach rotation only after validating.
func (e *Engine) RotateRefreshToken(ctx context.Context, oldToken string) (string, error) {
	if e == nil || e.refreshStore == nil {
		return "", ErrEngineNotReady
	}

	subject := ""
	old, err := e.refreshStore.Get(ctx, oldToken)
	switch {
	case err == nil:
		subject = old.Subject
	case errors.Is(err, stores.ErrRefreshNotFound), errors.Is(err, stores.ErrRefreshCorrupt):
		// Permissive per policy: rotation of a vanished token starts a new
		// session rather than stranding the caller.
	default:
		return "", mapRefreshStoreError(err)
	}

	newToken, err := e.IssueRefreshToken(ctx, subject)
	if err != nil {
		return "", err
	}

	if _, err := e.refreshStore.Delete(ctx, oldToken); err != nil {
		// The new token is already durable. Failing the whole rotation now
		// would strand a client that has discarded the old token, so the
		// rotation succeeds and the dangling old record is left to its TTL.
		e.log.WarnContext(ctx, "rotation could not delete old refresh token", "err", err)
	}

	metrics.RefreshTokensRotated.Inc()
	return newToken, nil
}

// RevokeRefreshToken deletes the token's record so the next validation
// fails. Revoking an unknown or already-revoked token is not an error.
func (e *Engine) RevokeRefreshToken(ctx context.Context, tok string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}

	if _, err := e.refreshStore.Delete(ctx, tok); err != nil {
		return mapRefreshStoreError(err)
	}

	metrics.RefreshTokensRevoked.Inc()
	return nil
}

// Login verifies credentials and mints an access/refresh token pair. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, pass string) (TokenPair, error) {
	if e == nil || e.users == nil || e.jwtManager == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return TokenPair{}, ErrInvalidCredentials
	}

	return e.mintPair(ctx, user.Email)
}

// Refresh validates the presented refresh token, rotates it, and mints a new
// access token. After it returns, the old refresh token no longer validates.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.jwtManager == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	subject, err := e.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	newToken, err := e.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	access, err := e.jwtManager.CreateAccess(subject)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: newToken}, nil
}

// Logout revokes the refresh token. Idempotent.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	return e.RevokeRefreshToken(ctx, refreshToken)
}

func (e *Engine) mintPair(ctx context.Context, subject string) (TokenPair, error) {
	refresh, err := e.IssueRefreshToken(ctx, subject)
	if err != nil {
		return TokenPair{}, err
	}

	access, err := e.jwtManager.CreateAccess(subject)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func mapRefreshStoreError(err error) error {
	if errors.Is(err, stores.ErrRefreshUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
