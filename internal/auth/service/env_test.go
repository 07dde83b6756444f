package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/google"
	"github.com/aussiebroadwan/quickfix/internal/auth/mail"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@quickfix.test"

var (
	codePattern  = regexp.MustCompile(`\b\d{6}\b`)
	tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

// fakeMailer records every message and can be told to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	code := codePattern.FindString(m.last(t).Text)
	require.NotEmpty(t, code, "no code in mail")
	return code
}

func (m *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	match := tokenPattern.FindStringSubmatch(m.last(t).Text)
	require.Len(t, match, 2, "no reset token in mail")
	return match[1]
}

// fakeProvider resolves tokens from a fixed table.
type fakeProvider struct {
	identities map[string]google.Identity
	calls      int
}

func (p *fakeProvider) Exchange(_ context.Context, token string) (google.Identity, error) {
	p.calls++
	id, ok := p.identities[token]
	if !ok {
		return google.Identity{}, google.ErrInvalidToken
	}
	return id, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store    *sqlite.Store
	mailer   *fakeMailer
	provider *fakeProvider
	clock    *fakeClock
	gateway  *Gateway
}

// newTestEnv wires a Gateway over a private in-memory sqlite database.
// Expiry decisions follow env.clock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	env := &testEnv{
		store:    st,
		mailer:   &fakeMailer{},
		provider: &fakeProvider{identities: map[string]google.Identity{}},
		clock:    newFakeClock(),
	}

	gate := NewAdminGate(adminEmail)
	creds := &CredentialStore{Store: st}
	otp := &OTPManager{Challenges: st.Challenges(), Mailer: env.mailer, Now: env.clock.Now}
	env.gateway = &Gateway{
		Store:       st,
		Credentials: creds,
		OTP:         otp,
		Reset: &ResetManager{
			Store:    st,
			Mailer:   env.mailer,
			ResetURL: "https://quickfix.test/reset-password",
			Now:      env.clock.Now,
		},
		OAuth: &OAuthBridge{
			Provider:    env.provider,
			Credentials: creds,
			OTP:         otp,
			Gate:        gate,
		},
		Gate: gate,
		Now:  env.clock.Now,
	}
	return env
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	_, err := e.gateway.Register(t.Context(), NewUser{Email: email, FullName: "Test User", Password: password})
	require.NoError(t, err)
}

// errCount tallies results from concurrent calls.
func errCount(errs []error, target error) int {
	n := 0
	for _, err := range errs {
		if (target == nil && err == nil) || (target != nil && errors.Is(err, target)) {
			n++
		}
	}
	return n
}
