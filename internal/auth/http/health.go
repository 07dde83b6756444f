package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

// readinessTimeout bounds all dependency checks of one /readyz call.
const readinessTimeout = 2 * time.Second

// Pinger is implemented by challenge backends that live outside the main
// database, such as redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

func healthReport(status string, started time.Time, version string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(started).Round(time.Second).String(),
		Version: version,
	}
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Reports uptime and version. Answers 200 for as long as the process serves HTTP; dependencies are not checked.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Router			/livez [get]
func LivezHandler(started time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthReport("ok", started, version))
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Pings the database and, when it is separate, the one-time code backend. Any failure makes the service "degraded".
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Failure		503	{object}	authsdk.HealthResponse	"checks names the failing dependency"
//	@Router			/readyz [get]
func ReadyzHandler(started time.Time, version string, st store.Store, challenges store.Challenges) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := &authsdk.HealthChecks{
			Database:   checkResult(st.Ping(ctx)),
			Challenges: "ok",
		}
		// SQL challenge tables share the connection pinged above.
		if p, ok := challenges.(Pinger); ok {
			checks.Challenges = checkResult(p.Ping(ctx))
		}

		report, code := healthReport("ok", started, version), http.StatusOK
		if checks.Database != "ok" || checks.Challenges != "ok" {
			report.Status, code = "degraded", http.StatusServiceUnavailable
		}
		report.Checks = checks
		httpx.WriteJSON(w, code, report)
	}
}

func checkResult(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
