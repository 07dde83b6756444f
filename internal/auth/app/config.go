package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
	"github.com/joho/godotenv"
)

// Email delivery modes.
const (
	EmailModeLive    = "live"    // send through Resend
	EmailModeTesting = "testing" // send through Resend, all mail to EmailTestingInbox
	EmailModeLog     = "log"     // write mail to the log, development only
)

// Challenge backends.
const (
	ChallengeBackendSQL   = "sql"
	ChallengeBackendRedis = "redis"
)

type Config struct {
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	DatabaseFile string // SQLite database file (default: ./auth.db), used when DatabaseURL is empty
	DatabaseURL  string // Optional: postgres DSN, selects the postgres driver
	PepperFile   string // File holding the password pepper, created on first run (default: ./pepper)

	AdminEmails      []string // Allowlist for the admin entry points (AUTH_ADMIN_EMAILS, comma separated)
	ChallengeBackend string   // sql or redis (default: sql)
	RedisURL         string   // Required for the redis challenge backend

	OTPTTL     time.Duration // Login code lifetime (default: 10m)
	ResetTTL   time.Duration // Reset link lifetime (default: 1h)
	SessionTTL time.Duration // Session lifetime (default: 7 days)
	ResetURL   string        // Frontend page that receives reset links

	MailResponseFloor time.Duration // Fixed duration of request-otp and forgot-password (default: 500ms, 0 sends inline)

	GoogleClientID         string        // Audience of Google ID tokens
	GoogleJWKSURL          string        // Optional: override of Google's certs URL
	GoogleUserinfoEndpoint string        // Optional: override of the userinfo API base URL
	ProviderTimeout        time.Duration // Bound on every call to Google (default: 10s)

	EmailMode         string // live, testing or log (default: log)
	ResendAPIKey      string
	EmailFrom         string
	EmailTestingInbox string

	CORSAllowedOrigins []string // Empty allows any origin
	TrustedProxies     []string // Addresses or CIDRs whose X-Forwarded-For is believed (AUTH_TRUSTED_PROXIES, comma separated)
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists.
func LoadConfig() Config {
	_ = godotenv.Load() // a missing .env is the normal case outside development

	return Config{
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		DatabaseURL:  os.Getenv("AUTH_DATABASE_URL"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		AdminEmails:      service.ParseAdminEmails(os.Getenv("AUTH_ADMIN_EMAILS")),
		ChallengeBackend: strings.ToLower(getEnvOrDefault("AUTH_CHALLENGE_BACKEND", ChallengeBackendSQL)),
		RedisURL:         os.Getenv("REDIS_URL"),

		OTPTTL:     getEnvDurationOrDefault("AUTH_OTP_TTL", service.DefaultOTPTTL),
		ResetTTL:   getEnvDurationOrDefault("AUTH_RESET_TTL", service.DefaultResetTTL),
		SessionTTL: getEnvDurationOrDefault("AUTH_SESSION_TTL", service.DefaultSessionTTL),
		ResetURL:   getEnvOrDefault("AUTH_RESET_URL", "http://localhost:5173/reset-password"),

		MailResponseFloor: getEnvDurationOrDefault("AUTH_MAIL_RESPONSE_FLOOR", service.DefaultResponseFloor),

		GoogleClientID:         os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleJWKSURL:          os.Getenv("GOOGLE_JWKS_URL"),
		GoogleUserinfoEndpoint: os.Getenv("GOOGLE_USERINFO_ENDPOINT"),
		ProviderTimeout:        getEnvDurationOrDefault("AUTH_PROVIDER_TIMEOUT", 10*time.Second),

		EmailMode:         strings.ToLower(getEnvOrDefault("EMAIL_MODE", EmailModeLog)),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		EmailFrom:         getEnvOrDefault("EMAIL_FROM", "QuickFix <noreply@quickfix.local>"),
		EmailTestingInbox: os.Getenv("EMAIL_TESTING_INBOX"),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:     splitList(os.Getenv("AUTH_TRUSTED_PROXIES")),
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.DatabaseURL == "" && c.DatabaseFile == "" {
		errs = append(errs, errors.New("AUTH_DATABASE_FILE or AUTH_DATABASE_URL is required"))
	}
	if len(c.AdminEmails) == 0 {
		errs = append(errs, errors.New("AUTH_ADMIN_EMAILS must name at least one address"))
	}

	switch c.ChallengeBackend {
	case ChallengeBackendSQL:
	case ChallengeBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis challenge backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_CHALLENGE_BACKEND %q is not one of sql, redis", c.ChallengeBackend))
	}

	for name, d := range map[string]time.Duration{
		"AUTH_OTP_TTL":          c.OTPTTL,
		"AUTH_RESET_TTL":        c.ResetTTL,
		"AUTH_SESSION_TTL":      c.SessionTTL,
		"AUTH_PROVIDER_TIMEOUT": c.ProviderTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_TRUSTED_PROXIES: %w", err))
	}
	if c.MailResponseFloor < 0 {
		errs = append(errs, errors.New("AUTH_MAIL_RESPONSE_FLOOR must not be negative"))
	}

	switch c.EmailMode {
	case EmailModeLog:
		if c.Env == "prod" {
			errs = append(errs, errors.New("EMAIL_MODE=log prints codes to the log and is not allowed in prod"))
		}
	case EmailModeLive, EmailModeTesting:
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required to send mail"))
		}
		if c.EmailMode == EmailModeTesting && c.EmailTestingInbox == "" {
			errs = append(errs, errors.New("EMAIL_TESTING_INBOX is required in testing mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMAIL_MODE %q is not one of live, testing, log", c.EmailMode))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
