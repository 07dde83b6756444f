package http

import (
	"net/http"

	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
	"github.com/aussiebroadwan/quickfix/pkg/httpx"
)

type AdminUsersHandler struct {
	Gateway *service.Gateway
}

// ServeHTTP lists every account, newest first.
//
//	@Summary		List users
//	@Description	Requires a session opened through an admin entry point by an allowlisted email.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UsersResponse	"All accounts"
//	@Failure		401	{object}	authsdk.APIError		"unauthenticated"
//	@Failure		403	{object}	authsdk.APIError		"unauthorized"
//	@Router			/auth/admin/users [get].
func (h *AdminUsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	users, err := h.Gateway.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UsersResponse{Users: toUsers(users)})
}
