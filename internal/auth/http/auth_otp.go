package http

import (
	"net/http"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

const otpSentMessage = "If an account exists for this email, a login code has been sent."

// HandleRequestOTP mails a login code.
//
//	@Summary		Request login code
//	@Description	Mails a six digit login code when the email has an account. The response is the same either way.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"Email"
//	@Success		200		{object}	authsdk.MessageResponse	"Generic confirmation"
//	@Failure		400		{object}	authsdk.APIError		"validation_error"
//	@Failure		429		{object}	authsdk.APIError		"rate_limited"
//	@Router			/auth/request-otp [post].
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Gateway.RequestOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: otpSentMessage})
}

// HandleVerifyOTP completes a login started with request-otp.
//
//	@Summary		Verify login code
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Email and code"
//	@Success		200		{object}	authsdk.AuthResponse		"Session issued"
//	@Failure		400		{object}	authsdk.APIError			"no_active_challenge, code_mismatch, code_expired or max_attempts_exceeded"
//	@Failure		429		{object}	authsdk.APIError			"rate_limited"
//	@Router			/auth/verify-otp [post].
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, domain.PurposeLogin)
}

// HandleGoogleVerifyOTP completes a Google sign-in.
//
//	@Summary		Verify Google sign-in code
//	@Description	Completes a sign-in started with POST /auth/google using the code mailed to the Google address.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Email and code"
//	@Success		200		{object}	authsdk.AuthResponse		"Session issued"
//	@Failure		400		{object}	authsdk.APIError			"no_active_challenge, code_mismatch, code_expired or max_attempts_exceeded"
//	@Failure		403		{object}	authsdk.APIError			"unauthorized"
//	@Router			/auth/google-verify-otp [post].
func (h *AuthHandler) HandleGoogleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, domain.PurposeGoogle)
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, purpose string) {
	var req authsdk.VerifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verify := h.Gateway.VerifyOTP
	if purpose == domain.PurposeGoogle {
		verify = h.Gateway.VerifyGoogleOTP
	}

	res, err := verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}
