package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Session makes authenticated calls with a bearer token. The server
// resolves identity and role on every call; a Session holds nothing but
// the token.
type Session struct {
	client      *SDKClient
	accessToken string
}

// AccessToken returns the bearer token.
func (s *Session) AccessToken() string {
	return s.accessToken
}

// Me returns the signed-in account.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var resp UserResponse
	if err := s.client.call(ctx, http.MethodGet, "/auth/me", nil, s.accessToken, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// UpdateProfile edits the profile of email, which must be the signed-in
// account. An empty email means the signed-in account.
func (s *Session) UpdateProfile(ctx context.Context, email string, req UpdateProfileRequest) (*User, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	path := "/auth/update-profile"
	if email != "" {
		path += "?" + url.Values{"email": {email}}.Encode()
	}

	var resp UserResponse
	if err := s.client.call(ctx, http.MethodPatch, path, req, s.accessToken, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout revokes the session on the server.
func (s *Session) Logout(ctx context.Context) error {
	return s.client.call(ctx, http.MethodPost, "/auth/logout", nil, s.accessToken, nil, http.StatusNoContent)
}

// ListUsers returns every account. It requires an admin-mode session.
func (s *Session) ListUsers(ctx context.Context) ([]User, error) {
	var resp UsersResponse
	if err := s.client.call(ctx, http.MethodGet, "/auth/admin/users", nil, s.accessToken, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Users, nil
}
