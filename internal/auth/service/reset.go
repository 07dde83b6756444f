package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/mail"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/cryptox"
	"github.com/aussiebroadwan/quickfix/pkg/idx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

const (
	DefaultResetTTL = time.Hour

	resetTokenBytes = cryptox.TokenSize256
)

// ResetManager runs the forgot-password flow.
type ResetManager struct {
	Store  store.Store
	Mailer mail.Sender
	TTL    time.Duration

	// ResetURL is the page that receives email and token as query
	// parameters, e.g. https://quickfix.example/reset-password.
	ResetURL string

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	// ResponseFloor is the fixed time RequestReset takes, so mail latency
	// does not tell known addresses from unknown ones. Zero sends inline.
	ResponseFloor time.Duration
}

func (m *ResetManager) ttl() time.Duration {
	if m.TTL <= 0 {
		return DefaultResetTTL
	}
	return m.TTL
}

// RequestReset mails a reset link when email belongs to an active account.
// It reports success in every other case too, including delivery
// failures, which are only logged.
func (m *ResetManager) RequestReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	respondAfter(ctx, m.ResponseFloor, func(ctx context.Context) {
		err := m.requestReset(ctx, email)
		passwordResetsTotal.WithLabelValues("request", outcome(err)).Inc()
		if err != nil {
			slogx.FromContext(ctx).Error("password reset request failed", "error", err)
		}
	})
	return nil
}

func (m *ResetManager) requestReset(ctx context.Context, email string) error {
	u, err := m.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !u.IsActive {
		return nil
	}

	token, err := cryptox.GenerateToken(resetTokenBytes)
	if err != nil {
		return err
	}

	issuedAt := now(m.Now)
	t := domain.ResetToken{
		ID:        idx.NewAt(issuedAt).String(),
		Email:     email,
		TokenHash: cryptox.FingerprintScoped(email, token),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(m.ttl()),
	}
	if err := m.Store.ResetTokens().ReplaceResetToken(ctx, t); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	msg, err := mail.ResetMessage(email, m.resetLink(email, token), m.ttl())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if err := m.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	slogx.FromContext(ctx).Info("password reset link issued", "user_id", u.ID)
	return nil
}

func (m *ResetManager) resetLink(email, token string) string {
	q := url.Values{"email": {email}, "token": {token}}
	base, err := url.Parse(m.ResetURL)
	if err != nil || m.ResetURL == "" {
		return "?" + q.Encode()
	}
	base.RawQuery = q.Encode()
	return base.String()
}

// Reset sets a new password using a mailed token. The token is consumed,
// the password replaced and every session of the user revoked in a single
// transaction, so a token can never be used twice.
func (m *ResetManager) Reset(ctx context.Context, email, token, newPassword string) error {
	err := m.reset(ctx, NormalizeEmail(email), token, newPassword)
	passwordResetsTotal.WithLabelValues("complete", outcome(err)).Inc()
	return err
}

func (m *ResetManager) reset(ctx context.Context, email, token, newPassword string) error {
	if email == "" || token == "" {
		return ErrInvalidToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	t, err := m.Store.ResetTokens().GetResetToken(ctx, email, cryptox.FingerprintScoped(email, token))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to load reset token: %w", err)
	}

	at := now(m.Now)
	if !at.Before(t.ExpiresAt) {
		return ErrExpiredToken
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var userID string
	err = m.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.ResetTokens().ConsumeResetToken(ctx, t.ID, at); err != nil {
			return err
		}

		u, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		userID = u.ID

		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return err
		}
		return tx.Sessions().RevokeUserSessions(ctx, u.ID, at)
	})
	switch {
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound):
		return ErrInvalidToken
	case err != nil:
		return fmt.Errorf("failed to reset password: %w", err)
	}

	slogx.FromContext(ctx).Info("password reset completed", "user_id", userID)
	return nil
}
