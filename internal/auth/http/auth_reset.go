package http

import (
	"net/http"

	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

const resetSentMessage = "If an account exists for this email, a password reset link has been sent."

// HandleForgotPassword mails a reset link.
//
//	@Summary		Forgot password
//	@Description	Mails a single use reset link when the email has an account. The response is the same either way.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"Email"
//	@Success		200		{object}	authsdk.MessageResponse	"Generic confirmation"
//	@Failure		400		{object}	authsdk.APIError		"validation_error"
//	@Router			/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Gateway.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: resetSentMessage})
}

// HandleResetPassword sets a new password and signs the user out everywhere.
//
//	@Summary		Reset password
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Email, token from the link and new password"
//	@Success		200		{object}	authsdk.MessageResponse			"Password changed"
//	@Failure		400		{object}	authsdk.APIError				"invalid_token, expired_token or validation_error"
//	@Router			/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Gateway.ResetPassword(r.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{
		Message: "Your password has been reset. Sign in with your new password.",
	})
}
