package http

import (
	"net/http"

	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

// AuthHandler serves the unauthenticated /auth/* sign-in endpoints.
type AuthHandler struct {
	Gateway *service.Gateway
}

// HandleRegister creates a password account.
//
//	@Summary		Register
//	@Description	Creates a password account. The user is not signed in; call login-password next.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	authsdk.UserResponse	"Created account"
//	@Failure		400		{object}	authsdk.APIError		"validation_error"
//	@Failure		409		{object}	authsdk.APIError		"duplicate_email"
//	@Router			/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.Gateway.Register(r.Context(), toNewUser(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.UserResponse{User: toUser(u)})
}

// HandleLoginPassword signs in with email and password.
//
//	@Summary		Password login
//	@Description	Signs in with email and password. With admin_mode the email must be on the admin allowlist; the password is not checked otherwise.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginPasswordRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse			"Session issued"
//	@Failure		400		{object}	authsdk.APIError				"validation_error"
//	@Failure		401		{object}	authsdk.APIError				"invalid_credentials"
//	@Failure		403		{object}	authsdk.APIError				"unauthorized"
//	@Failure		429		{object}	authsdk.APIError				"rate_limited"
//	@Router			/auth/login-password [post].
func (h *AuthHandler) HandleLoginPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Gateway.LoginWithPassword(r.Context(), req.Email, req.Password, req.AdminMode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}
