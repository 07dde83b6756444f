package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/mail"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/cryptox"
	"github.com/aussiebroadwan/quickfix/pkg/idx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

const (
	// MaxOTPAttempts is the number of wrong codes a challenge survives.
	MaxOTPAttempts = 5
	OTPDigits      = 6
	DefaultOTPTTL  = 10 * time.Minute
)

// IssueOptions describes what a challenge will unlock once verified.
type IssueOptions struct {
	Purpose   string
	AdminMode bool
}

// OTPManager issues and verifies emailed one-time codes. Each email has at
// most one live challenge; issuing a new code replaces the old one.
type OTPManager struct {
	Challenges store.Challenges
	Mailer     mail.Sender
	TTL        time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (m *OTPManager) ttl() time.Duration {
	if m.TTL <= 0 {
		return DefaultOTPTTL
	}
	return m.TTL
}

// Issue generates a fresh code for email, stores its fingerprint and mails
// it. A delivery failure is reported as ErrDeliveryFailed; the stored
// challenge stays in place so a resend replaces it.
func (m *OTPManager) Issue(ctx context.Context, email string, opts IssueOptions) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if opts.Purpose == "" {
		opts.Purpose = domain.PurposeLogin
	}

	code, err := cryptox.GenerateNumericCode(OTPDigits)
	if err != nil {
		return err
	}

	issuedAt := now(m.Now)
	c := domain.Challenge{
		ID:        idx.NewAt(issuedAt).String(),
		Email:     email,
		CodeHash:  cryptox.FingerprintScoped(email, code),
		Purpose:   opts.Purpose,
		AdminMode: opts.AdminMode,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(m.ttl()),
	}
	if err := m.Challenges.ReplaceChallenge(ctx, c); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	otpIssuedTotal.WithLabelValues(opts.Purpose).Inc()

	msg, err := mail.OTPMessage(email, code, m.ttl())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if err := m.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	slogx.FromContext(ctx).Info("one-time code issued",
		"challenge_id", c.ID,
		"purpose", c.Purpose,
		"admin_mode", c.AdminMode,
	)
	return nil
}

// Verify checks code against the live challenge for email and consumes it
// on a match. A challenge issued for another purpose is invisible here.
//
// Expiry is reported before anything else so an expired code is never
// called a mismatch. A code from a superseded challenge reports
// ErrNoActiveChallenge. Every other code, right or wrong, first reserves one
// of the MaxOTPAttempts attempts, so concurrent guesses cannot compare more
// codes than the ceiling allows. The wrong code that takes the last attempt
// kills the challenge.
func (m *OTPManager) Verify(ctx context.Context, email, code, purpose string) (domain.Challenge, error) {
	c, err := m.verify(ctx, NormalizeEmail(email), code, purpose)
	otpVerificationsTotal.WithLabelValues(outcome(err)).Inc()
	return c, err
}

func (m *OTPManager) verify(ctx context.Context, email, code, purpose string) (domain.Challenge, error) {
	if email == "" || code == "" {
		return domain.Challenge{}, fmt.Errorf("%w: email and code are required", ErrValidation)
	}

	c, err := m.Challenges.GetChallenge(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, ErrNoActiveChallenge
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to load challenge: %w", err)
	}
	if c.Purpose != purpose {
		return domain.Challenge{}, ErrNoActiveChallenge
	}

	at := now(m.Now)
	if !at.Before(c.ExpiresAt) {
		return domain.Challenge{}, ErrCodeExpired
	}

	// A code from a replaced or already used challenge is not a guess. The
	// lookup only ever reveals older challenges; a hit on the live one is
	// treated like a miss.
	hash := cryptox.FingerprintScoped(email, code)
	if old, err := m.Challenges.FindChallengeByCode(ctx, email, hash); err == nil && old.ID != c.ID {
		return domain.Challenge{}, ErrNoActiveChallenge
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, fmt.Errorf("failed to load challenge: %w", err)
	}

	reserved, err := m.Challenges.ReserveChallengeAttempt(ctx, c.ID, MaxOTPAttempts)
	switch {
	case errors.Is(err, store.ErrConflict):
		return domain.Challenge{}, ErrMaxAttemptsExceeded
	case errors.Is(err, store.ErrNotFound):
		// Consumed by a concurrent verify, or replaced.
		return domain.Challenge{}, ErrNoActiveChallenge
	case err != nil:
		return domain.Challenge{}, fmt.Errorf("failed to record attempt: %w", err)
	}

	if !cryptox.EqualFingerprints(reserved.CodeHash, hash) {
		if reserved.Attempts >= MaxOTPAttempts {
			slogx.FromContext(ctx).Warn("one-time code locked after too many attempts", "challenge_id", c.ID)
			return domain.Challenge{}, ErrMaxAttemptsExceeded
		}
		return domain.Challenge{}, ErrCodeMismatch
	}

	err = m.Challenges.ConsumeChallenge(ctx, c.ID, at)
	switch {
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound):
		return domain.Challenge{}, ErrNoActiveChallenge
	case err != nil:
		return domain.Challenge{}, fmt.Errorf("failed to consume challenge: %w", err)
	}

	reserved.ConsumedAt = &at
	return reserved, nil
}
