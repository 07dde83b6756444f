package httpx

import (
	"net/http"
)

// RequireAdmin lets through only principals that signed in through an
// admin entry point and currently hold the Admin role. It must run after
// AuthnMiddleware.
func RequireAdmin(adminRole string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			if !p.AdminMode || p.Role != adminRole {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "unauthorized",
					"error_description": "Administrator access is required.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
