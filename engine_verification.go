package tokengate

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokengate/tokengate/internal/metrics"
	"github.com/tokengate/tokengate/internal/stores"
)

// IssueVerificationToken creates a single-use token bound to subject with the
// configured short TTL. Outstanding tokens for the same subject stay valid
// independently until consumed or expired.
func (e *Engine) IssueVerificationToken(ctx context.Context, subject string) (string, error) {
	if e == nil || e.verifyStore == nil {
		return "", ErrEngineNotReady
	}

	tok, err := e.codec.Generate()
	if err != nil {
		return "", err
	}

	if err := e.verifyStore.Save(ctx, tok, subject, e.config.Verification.TTL); err != nil {
		return "", mapVerificationStoreError(err)
	}

	metrics.VerificationTokensIssued.Inc()
	return tok, nil
}

// ConsumeVerificationToken atomically removes the token and returns the
// subject it was bound to. Exactly one caller can win; everyone else gets
// [ErrTokenNotFound] and never a stale identity.
//
// A consume that times out with the outcome unknown must not be retried
// blindly: the first attempt may have consumed the record, and a retry would
// misreport ErrTokenNotFound for a legitimate single attempt.
func (e *Engine) ConsumeVerificationToken(ctx context.Context, tok string) (string, error) {
	if e == nil || e.verifyStore == nil {
		return "", ErrEngineNotReady
	}

	subject, err := e.verifyStore.Consume(ctx, tok)
	if err != nil {
		if errors.Is(err, stores.ErrVerificationNotFound) {
			metrics.VerificationTokensConsumed.WithLabelValues("not_found").Inc()
			e.log.InfoContext(ctx, "verification token absent or already consumed")
			return "", ErrTokenNotFound
		}
		metrics.VerificationTokensConsumed.WithLabelValues("store_error").Inc()
		e.log.ErrorContext(ctx, "verification consume failed", "err", err)
		return "", mapVerificationStoreError(err)
	}

	metrics.VerificationTokensConsumed.WithLabelValues("consumed").Inc()
	return subject, nil
}

// RequestPasswordReset issues a reset token for email and queues a
// token-bearing message. It returns nil whether or not the account exists, so
// the response never reveals which identities are registered.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	return e.requestTokenMail(ctx, email,
		"Password reset",
		"/reset-password?token=")
}

// ConfirmPasswordReset consumes the reset token and, when it was valid,
// stores a fresh hash of the new password for the bound account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tok, newPassword string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	subject, err := e.ConsumeVerificationToken(ctx, tok)
	if err != nil {
		return err
	}

	user, err := e.users.GetUserByEmail(ctx, subject)
	if err != nil {
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	return e.users.UpdatePasswordHash(ctx, user.UserID, hash)
}

// RequestEmailVerification issues a verification token for email and queues
// a confirmation message. Uniform response regardless of account existence.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	return e.requestTokenMail(ctx, email,
		"Verify your email",
		"/verify-email?token=")
}

// ConfirmEmailVerification consumes the token and marks the bound account's
// email as verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, tok string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	subject, err := e.ConsumeVerificationToken(ctx, tok)
	if err != nil {
		return err
	}

	user, err := e.users.GetUserByEmail(ctx, subject)
	if err != nil {
		return err
	}

	return e.users.MarkEmailVerified(ctx, user.UserID)
}

// requestTokenMail is the shared issuance path for both verification flows.
// Token issuance never blocks on or observes delivery outcome: the message
// is handed to the queue and the request returns.
func (e *Engine) requestTokenMail(ctx context.Context, email, subjectLine, path string) error {
	if e == nil || e.verifyStore == nil {
		return ErrEngineNotReady
	}

	if e.users != nil {
		if _, err := e.users.GetUserByEmail(ctx, email); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// Same outward behavior as the success path.
				return nil
			}
			return err
		}
	}

	tok, err := e.IssueVerificationToken(ctx, email)
	if err != nil {
		return err
	}

	e.mail.Enqueue(MailMessage{
		To:      email,
		Subject: subjectLine,
		Body:    "Follow this link: " + e.config.Mail.BaseURL + path + tok,
	})

	return nil
}

func mapVerificationStoreError(err error) error {
	if errors.Is(err, stores.ErrVerificationUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
