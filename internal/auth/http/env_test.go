package http

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/google"
	"github.com/aussiebroadwan/quickfix/internal/auth/mail"
	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@quickfix.test"

var (
	codePattern  = regexp.MustCompile(`\b\d{6}\b`)
	tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func (o *outbox) lastText(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no mail sent")
	return o.sent[len(o.sent)-1].Text
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	code := codePattern.FindString(o.lastText(t))
	require.NotEmpty(t, code)
	return code
}

func (o *outbox) lastResetToken(t *testing.T) string {
	t.Helper()
	m := tokenPattern.FindStringSubmatch(o.lastText(t))
	require.Len(t, m, 2)
	return m[1]
}

type stubProvider map[string]google.Identity

func (p stubProvider) Exchange(_ context.Context, token string) (google.Identity, error) {
	id, ok := p[token]
	if !ok {
		return google.Identity{}, google.ErrInvalidToken
	}
	return id, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	store    *sqlite.Store
	outbox   *outbox
	provider stubProvider
	clock    *clock
	client   *authsdk.SDKClient
}

func generousLimits() RateLimits {
	l := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	return RateLimits{Strict: l, Moderate: l, Lenient: l, Public: l}
}

// newTestServer serves a Router over an in-memory sqlite store. Pass
// nil limits for limits that no test reaches.
func newTestServer(t *testing.T, limits *RateLimits) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	ts := &testServer{
		store:    st,
		outbox:   &outbox{},
		provider: stubProvider{},
		clock:    &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	gate := service.NewAdminGate(adminEmail)
	creds := &service.CredentialStore{Store: st}
	otp := &service.OTPManager{Challenges: st.Challenges(), Mailer: ts.outbox, Now: ts.clock.Now}
	gw := &service.Gateway{
		Store:       st,
		Credentials: creds,
		OTP:         otp,
		Reset: &service.ResetManager{
			Store:    st,
			Mailer:   ts.outbox,
			ResetURL: "https://quickfix.test/reset-password",
			Now:      ts.clock.Now,
		},
		OAuth: &service.OAuthBridge{
			Provider:    ts.provider,
			Credentials: creds,
			OTP:         otp,
			Gate:        gate,
		},
		Gate: gate,
		Now:  ts.clock.Now,
	}

	router := NewRouter(gw, st, st.Challenges(), "test", slog.New(slog.DiscardHandler))
	router.Limits = generousLimits()
	if limits != nil {
		router.Limits = *limits
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	ts.client = authsdk.NewSDKClient(srv.URL)
	return ts
}

func (ts *testServer) register(t *testing.T, email, password string) {
	t.Helper()
	_, err := ts.client.Register(t.Context(), authsdk.RegisterRequest{Email: email, FullName: "Test User", Password: password})
	require.NoError(t, err)
}

func (ts *testServer) login(t *testing.T, email, password string, adminMode bool) *authsdk.AuthResponse {
	t.Helper()
	resp, err := ts.client.LoginPassword(t.Context(), authsdk.LoginPasswordRequest{Email: email, Password: password, AdminMode: adminMode})
	require.NoError(t, err)
	return resp
}
