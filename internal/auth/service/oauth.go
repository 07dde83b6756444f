package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/google"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

// IdentityProvider turns a provider credential into a verified identity.
// *google.Client implements it.
type IdentityProvider interface {
	Exchange(ctx context.Context, token string) (google.Identity, error)
}

// PendingChallenge is the result of a successful Google sign-in: the user
// must still enter the code mailed to Email.
type PendingChallenge struct {
	Email     string
	AdminMode bool
}

// OAuthBridge connects Google sign-in to the email code flow.
type OAuthBridge struct {
	Provider    IdentityProvider
	Credentials *CredentialStore
	OTP         *OTPManager
	Gate        *AdminGate
}

// Exchange verifies the provider token. Every failure, including a
// rejected token, is reported as ErrProviderFailed.
func (b *OAuthBridge) Exchange(ctx context.Context, token string) (google.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return google.Identity{}, fmt.Errorf("%w: token is required", ErrValidation)
	}
	id, err := b.Provider.Exchange(ctx, token)
	if err != nil {
		return google.Identity{}, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	id.Email = NormalizeEmail(id.Email)
	return id, nil
}

// BeginLogin verifies token, then issues a google purpose code to the
// verified address. In admin mode the allowlist is checked before any
// account or code is created.
func (b *OAuthBridge) BeginLogin(ctx context.Context, token, displayName string, isAdminMode bool) (PendingChallenge, error) {
	pending, err := b.beginLogin(ctx, token, displayName, isAdminMode)
	loginsTotal.WithLabelValues("google", outcome(err)).Inc()
	return pending, err
}

func (b *OAuthBridge) beginLogin(ctx context.Context, token, displayName string, isAdminMode bool) (PendingChallenge, error) {
	log := slogx.FromContext(ctx)

	id, err := b.Exchange(ctx, token)
	if err != nil {
		log.Warn("google token rejected", "error", err)
		return PendingChallenge{}, err
	}

	if isAdminMode && !b.Gate.IsAuthorized(id.Email) {
		log.Warn("google admin sign-in refused by allowlist")
		return PendingChallenge{}, ErrUnauthorized
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = id.Name
	}

	u, err := b.Credentials.FindOrCreateOAuthUser(ctx, id.Email, name, id.Subject)
	if err != nil {
		return PendingChallenge{}, err
	}
	if !u.IsActive {
		return PendingChallenge{}, ErrInvalidCredentials
	}

	err = b.OTP.Issue(ctx, u.Email, IssueOptions{Purpose: domain.PurposeGoogle, AdminMode: isAdminMode})
	if err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			log.Error("failed to deliver google sign-in code", "error", err)
		}
		return PendingChallenge{}, err
	}

	return PendingChallenge{Email: u.Email, AdminMode: isAdminMode}, nil
}
