package auth_test

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/quickfix/internal/auth/app"
	httpapi "github.com/aussiebroadwan/quickfix/internal/auth/http"
	"github.com/aussiebroadwan/quickfix/internal/auth/mail"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

/*
 * End-to-end tests run the complete auth service in process against real
 * postgres and redis containers. The containers are started once in
 * TestMain and every test gets its own database.
 */

const (
	adminEmail    = "admin@quickfix.test"
	adminPassword = "Admin123!"
	userPassword  = "hunter22"
)

var (
	postgresURL string // admin DSN of the shared postgres container
	redisURL    string

	databaseSeq atomic.Int64

	codePattern  = regexp.MustCompile(`\b\d{6}\b`)
	tokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

// TestMain starts the containers once before all tests and removes them
// afterwards. Without a container runtime the whole package is skipped.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Fprintln(os.Stdout, "skipping e2e tests in short mode")
		os.Exit(0)
	}

	ctx := context.Background()
	fmt.Fprintf(os.Stdout, "Starting postgres and redis containers...")

	pg, pgURL, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stdout, "\nskipping e2e tests, no container runtime: %v\n", err)
		os.Exit(0)
	}
	rc, rURL, err := startRedis(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "\nFailed to start redis: %v\n", err)
		os.Exit(1)
	}
	postgresURL, redisURL = pgURL, rURL
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up containers...")
	_ = rc.Terminate(ctx)
	_ = pg.Terminate(ctx)
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "quickfix",
				"POSTGRES_PASSWORD": "quickfix",
				"POSTGRES_DB":       "quickfix",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", err
	}
	host, port, err := endpoint(ctx, c, "5432")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	return c, fmt.Sprintf("postgres://quickfix:quickfix@%s:%s/%%s?sslmode=disable", host, port), nil
}

func startRedis(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", err
	}
	host, port, err := endpoint(ctx, c, "6379")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	return c, fmt.Sprintf("redis://%s:%s/0", host, port), nil
}

func endpoint(ctx context.Context, c testcontainers.Container, port string) (string, string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", "", err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", "", err
	}
	return host, mapped.Port(), nil
}

// freshDatabase creates an empty postgres database for one test.
func freshDatabase(t *testing.T) string {
	t.Helper()
	ctx := t.Context()

	conn, err := pgx.Connect(ctx, fmt.Sprintf(postgresURL, "quickfix"))
	require.NoError(t, err)
	defer conn.Close(ctx)

	name := fmt.Sprintf("e2e_%d", databaseSeq.Add(1))
	_, err = conn.Exec(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)
	return fmt.Sprintf(postgresURL, name)
}

// flushRedis removes codes left by an earlier test.
func flushRedis(t *testing.T) {
	t.Helper()
	opts, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	defer rdb.Close()
	require.NoError(t, rdb.FlushDB(t.Context()).Err())
}

// outbox captures every message the service sends.
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

func (o *outbox) last(t *testing.T, to string) mail.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == to {
			return o.sent[i]
		}
	}
	t.Fatalf("no mail sent to %s", to)
	return mail.Message{}
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func (o *outbox) code(t *testing.T, to string) string {
	t.Helper()
	code := codePattern.FindString(o.last(t, to).Text)
	require.NotEmpty(t, code, "mail to %s carries no code", to)
	return code
}

func (o *outbox) resetToken(t *testing.T, to string) string {
	t.Helper()
	m := tokenPattern.FindStringSubmatch(o.last(t, to).Text)
	require.Len(t, m, 2, "mail to %s carries no reset link", to)
	return m[1]
}

// googleUser is what the fake userinfo API returns for one access token.
type googleUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified_email"`
}

type service struct {
	client *authsdk.SDKClient
	outbox *outbox
	google sync.Map // access token -> googleUser
}

// addGoogleUser makes the fake userinfo API accept token.
func (s *service) addGoogleUser(token string, u googleUser) {
	s.google.Store(token, u)
}

// startService runs the auth service against a fresh postgres database
// and the shared redis. Nil limits means limits no test reaches.
func startService(t *testing.T, limits *httpapi.RateLimits) *service {
	t.Helper()
	flushRedis(t)

	svc := &service{outbox: &outbox{}}

	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		u, ok := svc.google.Load(auth[min(len(prefix), len(auth)):])
		if !ok {
			http.Error(w, `{"error":{"code":401,"message":"invalid token"}}`, http.StatusUnauthorized)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, u)
	}))
	t.Cleanup(userinfo.Close)

	cfg := app.Config{
		Env:                    "test",
		Port:                   8080,
		ShutdownGracePeriod:    5 * time.Second,
		HousekeepingInterval:   time.Hour,
		DatabaseURL:            freshDatabase(t),
		PepperFile:             filepath.Join(t.TempDir(), "pepper"),
		AdminEmails:            []string{adminEmail},
		ChallengeBackend:       app.ChallengeBackendRedis,
		RedisURL:               redisURL,
		OTPTTL:                 10 * time.Minute,
		ResetTTL:               time.Hour,
		SessionTTL:             24 * time.Hour,
		ResetURL:               "https://quickfix.test/reset-password",
		GoogleUserinfoEndpoint: userinfo.URL + "/",
		ProviderTimeout:        5 * time.Second,
		EmailMode:              app.EmailModeLog,
	}

	if limits == nil {
		generous := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
		limits = &httpapi.RateLimits{Strict: generous, Moderate: generous, Lenient: generous, Public: generous}
	}

	application, err := app.New(cfg,
		app.WithMailer(svc.outbox),
		app.WithLogger(slog.New(slog.DiscardHandler)),
		app.WithRateLimits(*limits),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	svc.client = authsdk.NewSDKClient(srv.URL)
	return svc
}

// register creates a password account.
func (s *service) register(t *testing.T, email string) authsdk.User {
	t.Helper()
	u, err := s.client.Register(t.Context(), authsdk.RegisterRequest{
		Email:    email,
		FullName: "Test User",
		Password: userPassword,
	})
	require.NoError(t, err)
	return *u
}

// login signs in with the test password.
func (s *service) login(t *testing.T, email, password string, admin bool) *authsdk.Session {
	t.Helper()
	resp, err := s.client.LoginPassword(t.Context(), authsdk.LoginPasswordRequest{
		Email:     email,
		Password:  password,
		AdminMode: admin,
	})
	require.NoError(t, err)
	assertAuthResponse(t, resp, email)
	return s.client.NewSession(resp.AccessToken)
}

// assertAuthResponse verifies a sign-in response has all required fields.
func assertAuthResponse(t *testing.T, resp *authsdk.AuthResponse, email string) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
	require.Equal(t, email, resp.User.Email)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
