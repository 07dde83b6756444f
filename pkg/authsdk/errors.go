package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeValidation          = "validation_error"
	ErrorCodeDuplicateEmail      = "duplicate_email"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeUnauthorized        = "unauthorized"
	ErrorCodeUnauthenticated     = "unauthenticated"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeNoActiveChallenge   = "no_active_challenge"
	ErrorCodeCodeMismatch        = "code_mismatch"
	ErrorCodeCodeExpired         = "code_expired"
	ErrorCodeMaxAttemptsExceeded = "max_attempts_exceeded"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeExpiredToken        = "expired_token"
	ErrorCodeProviderError       = "provider_error"
	ErrorCodeDeliveryError       = "delivery_error"
	ErrorCodeRateLimited         = httpx.ErrorCodeRateLimited
	ErrorCodeServerError         = "server_error"
)

// ErrUnreachable is returned when the server could not be reached at all.
// It is never an *APIError, so callers can tell an outage from a rejection.
var ErrUnreachable = errors.New("authsdk: cannot reach server")

// ============================================================================
// APIError - error shared by the server and the SDK
// ============================================================================

// APIError is the error body of every /auth/* endpoint. The server writes
// it with WriteError and the SDK decodes it back into the same type.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code (e.g. "code_expired")
	Code string `json:"error"`

	// Description is an actionable message suitable for end users
	Description string `json:"error_description"`

	// Fields carries per-field validation messages
	Fields map[string]string `json:"fields,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code, so errors.Is(err, authsdk.ErrCodeExpired) works for
// errors decoded from a response.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WithDescription returns a copy with a different message.
func (e *APIError) WithDescription(desc string) *APIError {
	c := *e
	c.Description = desc
	return &c
}

// WithFields returns a copy carrying per-field messages.
func (e *APIError) WithFields(fields map[string]string) *APIError {
	c := *e
	c.Fields = fields
	return &c
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrValidation is returned for malformed input. Fields names the
	// offending members when the check was per field.
	ErrValidation = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "some fields are missing or invalid",
	}

	// ErrDuplicateEmail is returned by register when the email is taken.
	ErrDuplicateEmail = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeDuplicateEmail,
		Description: "an account with this email already exists, sign in instead",
	}

	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "the email or password is incorrect",
	}

	// ErrUnauthorized is returned when the caller may not perform the
	// action, including admin sign-in for emails outside the allowlist.
	ErrUnauthorized = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeUnauthorized,
		Description: "you are not authorized to do this",
	}

	// ErrUnauthenticated is returned when the bearer token is missing,
	// expired or revoked.
	ErrUnauthenticated = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthenticated,
		Description: "your session has ended, sign in again",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "no such account",
	}

	// ErrNoActiveChallenge is returned when there is no code to verify,
	// including a code that was already used or replaced.
	ErrNoActiveChallenge = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNoActiveChallenge,
		Description: "there is no pending code for this email, request a new one",
	}

	ErrCodeMismatch = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeCodeMismatch,
		Description: "the code is incorrect, check the email and try again",
	}

	ErrCodeExpired = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeCodeExpired,
		Description: "the code has expired, request a new one",
	}

	// ErrMaxAttemptsExceeded is terminal for the challenge.
	ErrMaxAttemptsExceeded = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMaxAttemptsExceeded,
		Description: "too many incorrect codes, request a new one",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidToken,
		Description: "the reset link is invalid or has already been used",
	}

	ErrExpiredToken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeExpiredToken,
		Description: "the reset link has expired, request a new one",
	}

	ErrProviderError = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeProviderError,
		Description: "google sign-in could not be verified, try again",
	}

	ErrDeliveryError = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeDeliveryError,
		Description: "the email could not be sent, try again later",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrInvalidJSON = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "the request body is not valid JSON",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies
// that are not in the APIError shape get a generic code from the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	code := ErrorCodeServerError
	if resp.StatusCode == http.StatusTooManyRequests {
		code = ErrorCodeRateLimited
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        code,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
