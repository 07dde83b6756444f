package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

// serviceErrors maps service sentinels to the wire errors shared with the
// SDK. The first match wins.
var serviceErrors = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrValidation, authsdk.ErrValidation},
	{service.ErrDuplicateEmail, authsdk.ErrDuplicateEmail},
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrUnauthorized, authsdk.ErrUnauthorized},
	{service.ErrInvalidSession, authsdk.ErrUnauthenticated},
	{service.ErrUserNotFound, authsdk.ErrNotFound},
	{service.ErrNoActiveChallenge, authsdk.ErrNoActiveChallenge},
	{service.ErrCodeMismatch, authsdk.ErrCodeMismatch},
	{service.ErrCodeExpired, authsdk.ErrCodeExpired},
	{service.ErrMaxAttemptsExceeded, authsdk.ErrMaxAttemptsExceeded},
	{service.ErrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrExpiredToken, authsdk.ErrExpiredToken},
	{service.ErrProviderFailed, authsdk.ErrProviderError},
	{service.ErrDeliveryFailed, authsdk.ErrDeliveryError},
}

// writeServiceError writes the APIError for err. Anything unmapped is
// logged and reported as a generic server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if !errors.Is(err, m.err) {
			continue
		}
		api := m.api
		if m.err == service.ErrValidation {
			api = api.WithDescription(validationMessage(err))
		}
		api.WriteError(w)
		return
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	authsdk.ErrServerError.WriteError(w)
}

// validationMessage strips the sentinel prefix so the client sees only
// the field problem, e.g. "email is required".
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, service.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrValidation.Error())+2:]
	}
	return authsdk.ErrValidation.Description
}

// decodeBody decodes a JSON request body and runs its Validate method.
// It writes the error response itself and reports whether to continue.
func decodeBody[T interface{ Validate() map[string]string }](w http.ResponseWriter, r *http.Request, v *T) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		authsdk.ErrInvalidJSON.WithDescription(err.Error()).WriteError(w)
		return false
	}
	if fields := (*v).Validate(); fields != nil {
		authsdk.ErrValidation.WithFields(fields).WriteError(w)
		return false
	}
	return true
}

// principal returns the caller resolved by AuthnMiddleware.
func principal(w http.ResponseWriter, r *http.Request) (httpx.Principal, bool) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthenticated.WriteError(w)
	}
	return p, ok
}
