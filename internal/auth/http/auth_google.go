package http

import (
	"net/http"

	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

// HandleGoogle verifies a Google token and mails a code to its address.
//
//	@Summary		Google sign-in
//	@Description	Accepts a Google ID token or OAuth access token. The account is created on first use. A code is mailed to the Google address and the sign-in is completed with google-verify-otp.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.GoogleLoginRequest	true	"Google token"
//	@Success		200		{object}	authsdk.GoogleLoginResponse	"Code sent"
//	@Failure		400		{object}	authsdk.APIError			"validation_error"
//	@Failure		403		{object}	authsdk.APIError			"unauthorized"
//	@Failure		502		{object}	authsdk.APIError			"provider_error or delivery_error"
//	@Router			/auth/google [post].
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req authsdk.GoogleLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pending, err := h.Gateway.BeginGoogle(r.Context(), req.Token, req.Name, req.AdminMode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.GoogleLoginResponse{
		RequiresOTP: true,
		Email:       pending.Email,
		Message:     "A verification code has been sent to your email.",
	})
}
