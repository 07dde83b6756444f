package http

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/quickfix/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits holds the profile used for each class of endpoint.
type RateLimits struct {
	// Strict guards password and code checks.
	Strict httpx.RateLimitConfig
	// Moderate guards endpoints that send mail or create accounts.
	Moderate httpx.RateLimitConfig
	// Lenient applies to authenticated calls and probes.
	Lenient httpx.RateLimitConfig
	// Public applies to docs and metrics.
	Public httpx.RateLimitConfig
}

// DefaultRateLimits returns the package profiles of httpx, which honour
// the RATELIMIT_* environment overrides.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store      store.Store
	challenges store.Challenges
	Gateway    *service.Gateway

	// Limits, CORSOrigins and TrustedProxies must be set before ApplyRoutes.
	Limits         RateLimits
	CORSOrigins    []string
	TrustedProxies []netip.Prefix
}

func NewRouter(
	gateway *service.Gateway,
	st store.Store,
	challenges store.Challenges,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		challenges:   challenges,
		Gateway:      gateway,
		Limits:       DefaultRateLimits(),
	}
}

func (r *Router) ApplyRoutes() {
	// Metrics wraps the mux directly so it sees the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz", "/metrics"),
		httpx.ClientIP(r.TrustedProxies),
		httpx.CORS(r.CORSOrigins),
		httpx.Metrics(),
	}

	r.registerAuth()
	r.registerProfile()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			QuickFix Authentication Service API
//	@version		0.1.0
//	@description	Identity and session service for QuickFix. Every sign-in path (password, emailed code, Google) ends in an opaque bearer token.
//	@description
//	@description				Tokens carry no claims; identity and role are resolved on every call.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/quickfix
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Gateway: r.Gateway}

	// byEmail limits per IP and per target address, so one account cannot
	// be hammered from many IPs either.
	byEmail := func(hf http.HandlerFunc, cfg httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(hf,
			httpx.RateLimitByIP(cfg),
			httpx.RateLimitByJSONField(cfg, "email"),
		)
	}
	byIP := func(hf http.HandlerFunc, cfg httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(hf, httpx.RateLimitByIP(cfg))
	}

	r.Mux.Handle("POST /auth/register", byIP(h.HandleRegister, r.Limits.Moderate))
	r.Mux.Handle("POST /auth/login-password", byEmail(h.HandleLoginPassword, r.Limits.Strict))

	r.Mux.Handle("POST /auth/request-otp", byEmail(h.HandleRequestOTP, r.Limits.Moderate))
	r.Mux.Handle("POST /auth/verify-otp", byEmail(h.HandleVerifyOTP, r.Limits.Strict))

	// The google body has no email; the address comes from the token.
	r.Mux.Handle("POST /auth/google", byIP(h.HandleGoogle, r.Limits.Moderate))
	r.Mux.Handle("POST /auth/google-verify-otp", byEmail(h.HandleGoogleVerifyOTP, r.Limits.Strict))

	r.Mux.Handle("POST /auth/forgot-password", byEmail(h.HandleForgotPassword, r.Limits.Moderate))
	r.Mux.Handle("POST /auth/reset-password", byEmail(h.HandleResetPassword, r.Limits.Strict))
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Gateway: r.Gateway}

	secured := func(hf http.HandlerFunc) http.Handler {
		return httpx.Chain(hf,
			httpx.AuthnMiddleware(r.Gateway),
			httpx.RateLimitByUser(r.Limits.Lenient),
		)
	}

	r.Mux.Handle("GET /auth/me", secured(h.HandleMe))
	r.Mux.Handle("PATCH /auth/update-profile", secured(h.HandleUpdateProfile))
	r.Mux.Handle("POST /auth/logout", secured(h.HandleLogout))
}

func (r *Router) registerAdmin() {
	h := &AdminUsersHandler{Gateway: r.Gateway}

	r.Mux.Handle("GET /auth/admin/users",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.Gateway),
			httpx.RequireAdmin(domain.RoleAdmin),
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.challenges),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)

	r.Mux.Handle("GET /metrics",
		httpx.Chain(promhttp.Handler(), httpx.RateLimitByIP(r.Limits.Public)),
	)
	r.Mux.Handle("/swagger/",
		httpx.Chain(httpSwagger.Handler(), httpx.RateLimitByIP(r.Limits.Public)),
	)
}
