package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/cryptox"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
	"github.com/aussiebroadwan/quickfix/pkg/idx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

// Gateway is the single entry point for every sign-in path. Whatever the
// proof of identity, success ends in the same place: an opaque bearer
// token backed by a server-side session.
type Gateway struct {
	Store       store.Store
	Credentials *CredentialStore
	OTP         *OTPManager
	Reset       *ResetManager
	OAuth       *OAuthBridge
	Gate        *AdminGate

	SessionTTL time.Duration

	// ResponseFloor is the fixed time RequestOTP takes. Zero sends inline.
	ResponseFloor time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

var _ httpx.Authenticator = (*Gateway)(nil)

func (g *Gateway) sessionTTL() time.Duration {
	if g.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return g.SessionTTL
}

// LoginWithPassword signs in with email and password. In admin mode the
// allowlist is consulted first and the password is not checked at all for
// addresses outside it. A successful admin login grants the Admin role.
func (g *Gateway) LoginWithPassword(ctx context.Context, email, password string, isAdminMode bool) (domain.AuthResult, error) {
	res, err := g.loginWithPassword(ctx, NormalizeEmail(email), password, isAdminMode)
	loginsTotal.WithLabelValues(domain.MethodPassword, outcome(err)).Inc()
	return res, err
}

func (g *Gateway) loginWithPassword(ctx context.Context, email, password string, isAdminMode bool) (domain.AuthResult, error) {
	log := slogx.FromContext(ctx)

	if email == "" || password == "" {
		return domain.AuthResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	if isAdminMode && !g.Gate.IsAuthorized(email) {
		log.Warn("admin login refused by allowlist")
		return domain.AuthResult{}, ErrUnauthorized
	}

	u, ok, err := g.Credentials.VerifyPassword(ctx, email, password)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !ok {
		log.Info("password login failed")
		return domain.AuthResult{}, ErrInvalidCredentials
	}

	if isAdminMode {
		if u, err = g.promote(ctx, u); err != nil {
			return domain.AuthResult{}, err
		}
	}
	return g.mintSession(ctx, u, domain.MethodPassword, isAdminMode)
}

// Register creates a password account. It does not sign the user in.
func (g *Gateway) Register(ctx context.Context, nu NewUser) (domain.User, error) {
	u, err := g.Credentials.Create(ctx, nu)
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// RequestOTP mails a login code when email belongs to an active account.
// The outcome is indistinguishable to the caller either way; failures are
// logged only.
func (g *Gateway) RequestOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	respondAfter(ctx, g.ResponseFloor, func(ctx context.Context) {
		if err := g.requestOTP(ctx, email); err != nil {
			slogx.FromContext(ctx).Error("login code request failed", "error", err)
		}
	})
	return nil
}

func (g *Gateway) requestOTP(ctx context.Context, email string) error {
	u, err := g.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Debug("login code requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !u.IsActive {
		return nil
	}
	return g.OTP.Issue(ctx, email, IssueOptions{Purpose: domain.PurposeLogin})
}

// VerifyOTP completes the email code login.
func (g *Gateway) VerifyOTP(ctx context.Context, email, code string) (domain.AuthResult, error) {
	res, err := g.verifyChallenge(ctx, email, code, domain.PurposeLogin)
	loginsTotal.WithLabelValues(domain.MethodOTP, outcome(err)).Inc()
	return res, err
}

// VerifyGoogleOTP completes a Google sign-in started with BeginGoogle.
func (g *Gateway) VerifyGoogleOTP(ctx context.Context, email, code string) (domain.AuthResult, error) {
	res, err := g.verifyChallenge(ctx, email, code, domain.PurposeGoogle)
	loginsTotal.WithLabelValues(domain.MethodGoogle+"_otp", outcome(err)).Inc()
	return res, err
}

func (g *Gateway) verifyChallenge(ctx context.Context, email, code, purpose string) (domain.AuthResult, error) {
	c, err := g.OTP.Verify(ctx, email, code, purpose)
	if err != nil {
		return domain.AuthResult{}, err
	}

	u, err := g.Credentials.GetByEmail(ctx, c.Email)
	if errors.Is(err, ErrUserNotFound) {
		return domain.AuthResult{}, ErrNoActiveChallenge
	}
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !u.IsActive {
		return domain.AuthResult{}, ErrInvalidCredentials
	}

	method := domain.MethodOTP
	if purpose == domain.PurposeGoogle {
		method = domain.MethodGoogle
	}

	if c.AdminMode {
		// The allowlist may have changed since the code was issued.
		if !g.Gate.IsAuthorized(u.Email) {
			return domain.AuthResult{}, ErrUnauthorized
		}
		if u, err = g.promote(ctx, u); err != nil {
			return domain.AuthResult{}, err
		}
	}
	return g.mintSession(ctx, u, method, c.AdminMode)
}

// BeginGoogle verifies a Google token and mails a code to its address.
func (g *Gateway) BeginGoogle(ctx context.Context, token, name string, isAdminMode bool) (PendingChallenge, error) {
	return g.OAuth.BeginLogin(ctx, token, name, isAdminMode)
}

// ForgotPassword starts a reset. It never reveals whether email exists.
func (g *Gateway) ForgotPassword(ctx context.Context, email string) error {
	return g.Reset.RequestReset(ctx, email)
}

// ResetPassword completes a reset and signs the user out everywhere.
func (g *Gateway) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	return g.Reset.Reset(ctx, email, token, newPassword)
}

// Authenticate resolves a bearer token. Identity and role are read fresh
// on every call, so role changes and deactivation apply immediately. An
// admin session whose email has left the allowlist keeps working as a
// normal session.
func (g *Gateway) Authenticate(ctx context.Context, token string) (httpx.Principal, error) {
	if token == "" {
		return httpx.Principal{}, ErrInvalidSession
	}

	sess, err := g.Store.Sessions().GetSessionByHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return httpx.Principal{}, ErrInvalidSession
	}
	if err != nil {
		return httpx.Principal{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !now(g.Now).Before(sess.ExpiresAt) {
		return httpx.Principal{}, ErrInvalidSession
	}

	u, err := g.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return httpx.Principal{}, ErrInvalidSession
	}
	if err != nil {
		return httpx.Principal{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !u.IsActive {
		return httpx.Principal{}, ErrInvalidSession
	}

	return httpx.Principal{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		SessionID: sess.ID,
		AdminMode: sess.AdminMode && g.Gate.IsAuthorized(u.Email),
	}, nil
}

// Logout revokes the caller's current session.
func (g *Gateway) Logout(ctx context.Context, p httpx.Principal) error {
	err := g.Store.Sessions().RevokeSession(ctx, p.SessionID, now(g.Now))
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	slogx.FromContext(ctx).Info("session revoked", "session_id", p.SessionID)
	return nil
}

// Me returns the account of the authenticated caller.
func (g *Gateway) Me(ctx context.Context, p httpx.Principal) (domain.User, error) {
	return g.Credentials.GetByID(ctx, p.UserID)
}

// UpdateProfile edits the profile of email, which must be the caller's
// own. An empty email means the caller.
func (g *Gateway) UpdateProfile(ctx context.Context, p httpx.Principal, email string, upd domain.ProfileUpdate) (domain.User, error) {
	if email = NormalizeEmail(email); email == "" {
		email = p.Email
	}
	if email != p.Email {
		return domain.User{}, ErrUnauthorized
	}
	return g.Credentials.Update(ctx, email, upd)
}

// ListUsers returns every account, newest first.
func (g *Gateway) ListUsers(ctx context.Context) ([]domain.User, error) {
	return g.Credentials.List(ctx)
}

func (g *Gateway) promote(ctx context.Context, u domain.User) (domain.User, error) {
	if u.IsAdmin() {
		return u, nil
	}
	u, err := g.Credentials.SetRole(ctx, u.Email, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to grant admin role: %w", err)
	}
	slogx.FromContext(ctx).Info("admin role granted", "user_id", u.ID)
	return u, nil
}

func (g *Gateway) mintSession(ctx context.Context, u domain.User, method string, adminMode bool) (domain.AuthResult, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.AuthResult{}, err
	}

	createdAt := now(g.Now)
	sess := domain.Session{
		ID:        idx.NewAt(createdAt).String(),
		TokenHash: cryptox.FingerprintToken(token),
		UserID:    u.ID,
		Method:    method,
		AdminMode: adminMode,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(g.sessionTTL()),
	}
	if err := g.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.AuthResult{}, fmt.Errorf("failed to create session: %w", err)
	}

	slogx.FromContext(ctx).Info("session issued",
		"user_id", u.ID,
		"session_id", sess.ID,
		"method", method,
		"admin_mode", adminMode,
	)
	return domain.AuthResult{
		AccessToken: token,
		ExpiresIn:   g.sessionTTL(),
		Session:     sess,
		User:        u,
	}, nil
}
