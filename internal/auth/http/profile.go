package http

import (
	"net/http"

	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

// ProfileHandler serves the endpoints of the signed-in user. Every route
// runs behind AuthnMiddleware.
type ProfileHandler struct {
	Gateway *service.Gateway
}

// HandleMe returns the signed-in account.
//
//	@Summary		Current user
//	@Tags			Profile
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"Signed-in account"
//	@Failure		401	{object}	authsdk.APIError		"unauthenticated"
//	@Router			/auth/me [get].
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	u, err := h.Gateway.Me(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(u)})
}

// HandleUpdateProfile edits the profile named by the email query
// parameter, which must be the caller's own.
//
//	@Summary		Update profile
//	@Description	Updates the members present in the body. Omitted members keep their value. Password and role cannot be changed here.
//	@Tags			Profile
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			email	query		string							false	"Account to update, defaults to the caller"
//	@Param			request	body		authsdk.UpdateProfileRequest	true	"Profile members"
//	@Success		200		{object}	authsdk.UserResponse			"Updated account"
//	@Failure		400		{object}	authsdk.APIError				"validation_error"
//	@Failure		401		{object}	authsdk.APIError				"unauthenticated"
//	@Failure		403		{object}	authsdk.APIError				"unauthorized"
//	@Failure		404		{object}	authsdk.APIError				"not_found"
//	@Router			/auth/update-profile [patch].
func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req authsdk.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Empty() {
		authsdk.ErrValidation.WithDescription("no profile fields to update").WriteError(w)
		return
	}

	u, err := h.Gateway.UpdateProfile(r.Context(), p, r.URL.Query().Get("email"), toProfileUpdate(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(u)})
}

// HandleLogout revokes the caller's session.
//
//	@Summary		Logout
//	@Tags			Profile
//	@Security		BearerAuth
//	@Success		204	"Session revoked"
//	@Failure		401	{object}	authsdk.APIError	"unauthenticated"
//	@Router			/auth/logout [post].
func (h *ProfileHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.Gateway.Logout(r.Context(), p); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
