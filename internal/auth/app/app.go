package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/google"
	httpapi "github.com/aussiebroadwan/quickfix/internal/auth/http"
	"github.com/aussiebroadwan/quickfix/internal/auth/mail"
	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quickfix/pkg/cryptox"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	challenges store.Challenges
	redis      *redis.Challenges // nil unless the redis backend is selected

	// Services
	gateway             *service.Gateway
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router

	// Overrides set through Options
	mailer mail.Sender
	limits *httpapi.RateLimits
}

// Option adjusts an Application before its services are built.
type Option func(*Application)

// WithMailer replaces the mailer chosen by EMAIL_MODE.
func WithMailer(m mail.Sender) Option {
	return func(app *Application) { app.mailer = m }
}

// WithLogger replaces the logger built from LOG_LEVEL and LOG_FORMAT.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// WithRateLimits replaces the RATELIMIT_* profiles.
func WithRateLimits(l httpapi.RateLimits) Option {
	return func(app *Application) { app.limits = &l }
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initChallenges(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"admin_emails", app.gateway.Gate.Len(),
		"email_mode", app.cfg.EmailMode,
		"challenge_backend", app.cfg.ChallengeBackend,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Handler returns the fully wrapped HTTP handler, for serving the API
// without the built-in listener.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Close releases the redis and database connections. Shutdown calls it
// after the server has drained.
func (app *Application) Close() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// OpenStore opens postgres when AUTH_DATABASE_URL is set and sqlite
// otherwise, then applies migrations. It returns the driver name.
func OpenStore(ctx context.Context, cfg Config) (store.Store, string, error) {
	var (
		db     store.Store
		driver string
		err    error
	)
	if cfg.DatabaseURL != "" {
		driver = "postgres"
		db, err = postgres.NewStore(ctx, cfg.DatabaseURL)
	} else {
		driver = "sqlite"
		db, err = sqlite.NewStore(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseFile))
	}
	if err != nil {
		return nil, driver, fmt.Errorf("failed to initialize %s database: %w", driver, err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, driver, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, driver, nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	db, driver, err := OpenStore(ctx, app.cfg)
	if err != nil {
		return err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully", "driver", driver)
	return nil
}

// initChallenges picks where one-time codes live.
func (app *Application) initChallenges(ctx context.Context) error {
	if app.cfg.ChallengeBackend != ChallengeBackendRedis {
		app.challenges = app.db.Challenges()
		return nil
	}

	rc, err := redis.NewChallenges(ctx, app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = rc
	app.challenges = rc
	app.logger.Info("one-time codes stored in redis")
	return nil
}

func (app *Application) newMailer() mail.Sender {
	if app.mailer != nil {
		return app.mailer
	}
	switch app.cfg.EmailMode {
	case EmailModeLive:
		return mail.NewResendMailer(app.cfg.ResendAPIKey, app.cfg.EmailFrom, "")
	case EmailModeTesting:
		return mail.NewResendMailer(app.cfg.ResendAPIKey, app.cfg.EmailFrom, app.cfg.EmailTestingInbox)
	default:
		app.logger.Warn("email delivery disabled, codes and links are written to the log")
		return mail.LogMailer{Logger: app.logger}
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	mailer := app.newMailer()
	gate := service.NewAdminGate(app.cfg.AdminEmails...)
	creds := &service.CredentialStore{Store: app.db}
	otp := &service.OTPManager{
		Challenges: app.challenges,
		Mailer:     mailer,
		TTL:        app.cfg.OTPTTL,
	}

	if app.cfg.GoogleClientID == "" {
		app.logger.Warn("GOOGLE_CLIENT_ID is not set, Google ID tokens will be rejected")
	}
	provider := google.New(google.Config{
		ClientID:         app.cfg.GoogleClientID,
		JWKSURL:          app.cfg.GoogleJWKSURL,
		UserinfoEndpoint: app.cfg.GoogleUserinfoEndpoint,
		Timeout:          app.cfg.ProviderTimeout,
	})

	app.gateway = &service.Gateway{
		Store:       app.db,
		Credentials: creds,
		OTP:         otp,
		Reset: &service.ResetManager{
			Store:         app.db,
			Mailer:        mailer,
			TTL:           app.cfg.ResetTTL,
			ResetURL:      app.cfg.ResetURL,
			ResponseFloor: app.cfg.MailResponseFloor,
		},
		OAuth: &service.OAuthBridge{
			Provider:    provider,
			Credentials: creds,
			OTP:         otp,
			Gate:        gate,
		},
		Gate:          gate,
		SessionTTL:    app.cfg.SessionTTL,
		ResponseFloor: app.cfg.MailResponseFloor,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.challenges,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.gateway,
		app.db,
		app.challenges,
		BuildVersion,
		app.logger,
	)
	router.CORSOrigins = app.cfg.CORSAllowedOrigins
	// Validate has already rejected malformed entries.
	router.TrustedProxies, _ = httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	if app.limits != nil {
		router.Limits = *app.limits
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
