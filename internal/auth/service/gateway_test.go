package service

import (
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestLoginWithPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "u@x.com", "pw123")

	res, err := env.gateway.LoginWithPassword(ctx, "U@x.com", "pw123", false)
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.Equal(t, DefaultSessionTTL, res.ExpiresIn)
	require.Equal(t, domain.MethodPassword, res.Session.Method)
	require.Equal(t, domain.RoleUser, res.User.Role)

	p, err := env.gateway.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, p.UserID)
	require.Equal(t, "u@x.com", p.Email)
	require.False(t, p.AdminMode)

	_, err = env.gateway.LoginWithPassword(ctx, "u@x.com", "wrong", false)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.gateway.LoginWithPassword(ctx, "ghost@x.com", "pw123", false)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.gateway.LoginWithPassword(ctx, "u@x.com", "", false)
	require.ErrorIs(t, err, ErrValidation)
}

func TestLoginWithPasswordAdminShortCircuit(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "attacker@evil.com", "pw123")

	// The allowlist answers before the password is looked at.
	for _, pw := range []string{"pw123", "wrong"} {
		_, err := env.gateway.LoginWithPassword(ctx, "attacker@evil.com", pw, true)
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	_, err := env.gateway.LoginWithPassword(ctx, "nobody@evil.com", "pw123", true)
	require.ErrorIs(t, err, ErrUnauthorized)

	u, err := env.gateway.Credentials.GetByEmail(ctx, "attacker@evil.com")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, u.Role)
}

func TestLoginWithPasswordAdminPromotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, adminEmail, "pw123")

	_, err := env.gateway.LoginWithPassword(ctx, adminEmail, "wrong", true)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := env.gateway.LoginWithPassword(ctx, "ADMIN@quickfix.test", "pw123", true)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, res.User.Role)
	require.True(t, res.Session.AdminMode)

	p, err := env.gateway.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	require.True(t, p.AdminMode)
	require.Equal(t, domain.RoleAdmin, p.Role)
}

func TestAuthenticateDowngradesRemovedAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, adminEmail, "pw123")

	res, err := env.gateway.LoginWithPassword(ctx, adminEmail, "pw123", true)
	require.NoError(t, err)

	env.gateway.Gate = NewAdminGate()
	p, err := env.gateway.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	require.False(t, p.AdminMode)
}

func TestRequestAndVerifyOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "o@x.com", "pw123")

	require.NoError(t, env.gateway.RequestOTP(ctx, "o@x.com"))
	code := env.mailer.lastCode(t)

	_, err := env.gateway.VerifyOTP(ctx, "o@x.com", wrongCode(code))
	require.ErrorIs(t, err, ErrCodeMismatch)

	res, err := env.gateway.VerifyOTP(ctx, "o@x.com", code)
	require.NoError(t, err)
	require.Equal(t, domain.MethodOTP, res.Session.Method)
	require.False(t, res.Session.AdminMode)
}

func TestRequestOTPIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	require.NoError(t, env.gateway.RequestOTP(ctx, "ghost@x.com"))
	require.Zero(t, env.mailer.count())

	env.register(t, "m@x.com", "pw123")
	env.mailer.err = errors.New("provider down")
	require.NoError(t, env.gateway.RequestOTP(ctx, "m@x.com"))

	require.ErrorIs(t, env.gateway.RequestOTP(ctx, "bad"), ErrValidation)
}

func TestConcurrentVerifyMintsOneSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "c@x.com", "pw123")
	require.NoError(t, env.gateway.RequestOTP(ctx, "c@x.com"))
	code := env.mailer.lastCode(t)

	type result struct {
		token string
		err   error
	}
	results := make(chan result, 2)
	for range 2 {
		go func() {
			res, err := env.gateway.VerifyOTP(ctx, "c@x.com", code)
			results <- result{res.AccessToken, err}
		}()
	}

	var tokens []string
	for range 2 {
		r := <-results
		if r.err != nil {
			require.ErrorIs(t, r.err, ErrNoActiveChallenge)
			continue
		}
		tokens = append(tokens, r.token)
	}
	require.Len(t, tokens, 1)
}

func TestAuthenticateRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "s@x.com", "pw123")

	res, err := env.gateway.LoginWithPassword(ctx, "s@x.com", "pw123", false)
	require.NoError(t, err)

	_, err = env.gateway.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrInvalidSession)
	_, err = env.gateway.Authenticate(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidSession)

	env.clock.Advance(DefaultSessionTTL + time.Second)
	_, err = env.gateway.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "l@x.com", "pw123")

	first, err := env.gateway.LoginWithPassword(ctx, "l@x.com", "pw123", false)
	require.NoError(t, err)
	second, err := env.gateway.LoginWithPassword(ctx, "l@x.com", "pw123", false)
	require.NoError(t, err)

	p, err := env.gateway.Authenticate(ctx, first.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.gateway.Logout(ctx, p))
	require.NoError(t, env.gateway.Logout(ctx, p), "logout is idempotent")

	_, err = env.gateway.Authenticate(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrInvalidSession)
	_, err = env.gateway.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err, "other sessions survive")
}

func TestUpdateProfileOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "me@x.com", "pw123")
	env.register(t, "them@x.com", "pw123")

	res, err := env.gateway.LoginWithPassword(ctx, "me@x.com", "pw123", false)
	require.NoError(t, err)
	p, err := env.gateway.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)

	org := "Council"
	u, err := env.gateway.UpdateProfile(ctx, p, "", domain.ProfileUpdate{Organization: &org})
	require.NoError(t, err)
	require.Equal(t, "Council", u.Organization)

	u, err = env.gateway.UpdateProfile(ctx, p, "ME@x.com", domain.ProfileUpdate{})
	require.NoError(t, err)
	require.Equal(t, "Council", u.Organization)

	_, err = env.gateway.UpdateProfile(ctx, p, "them@x.com", domain.ProfileUpdate{Organization: &org})
	require.ErrorIs(t, err, ErrUnauthorized)

	me, err := env.gateway.Me(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "Council", me.Organization)
}

func TestInactiveUserCannotSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "off@x.com", "pw123")

	res, err := env.gateway.LoginWithPassword(ctx, "off@x.com", "pw123", false)
	require.NoError(t, err)

	_, err = env.gateway.Credentials.SetActive(ctx, "off@x.com", false)
	require.NoError(t, err)

	_, err = env.gateway.LoginWithPassword(ctx, "off@x.com", "pw123", false)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.gateway.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	require.NoError(t, env.gateway.RequestOTP(ctx, "off@x.com"))
	require.Zero(t, env.mailer.count())
}
