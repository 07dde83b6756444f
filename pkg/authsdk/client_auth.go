package authsdk

import (
	"context"
	"net/http"
)

// Register creates a password account. It does not sign the user in.
// Invalid input is rejected locally before any request is sent.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	var resp UserResponse
	if err := c.call(ctx, http.MethodPost, "/auth/register", req, "", &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// LoginPassword signs in with email and password.
func (c *SDKClient) LoginPassword(ctx context.Context, req LoginPasswordRequest) (*AuthResponse, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := c.call(ctx, http.MethodPost, "/auth/login-password", req, "", &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestOTP asks for a sign-in code. The server answers the same way
// whether or not the email has an account.
func (c *SDKClient) RequestOTP(ctx context.Context, email string) (*MessageResponse, error) {
	return c.postEmail(ctx, "/auth/request-otp", email)
}

// VerifyOTP completes a code sign-in started with RequestOTP.
func (c *SDKClient) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*AuthResponse, error) {
	return c.verify(ctx, "/auth/verify-otp", req)
}

// GoogleLogin exchanges a Google token. On success a code is mailed to
// the Google address and the sign-in is completed with GoogleVerifyOTP.
func (c *SDKClient) GoogleLogin(ctx context.Context, req GoogleLoginRequest) (*GoogleLoginResponse, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	var resp GoogleLoginResponse
	if err := c.call(ctx, http.MethodPost, "/auth/google", req, "", &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoogleVerifyOTP completes a sign-in started with GoogleLogin.
func (c *SDKClient) GoogleVerifyOTP(ctx context.Context, req VerifyOTPRequest) (*AuthResponse, error) {
	return c.verify(ctx, "/auth/google-verify-otp", req)
}

// ForgotPassword asks for a reset link. The server answers the same way
// whether or not the email has an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	return c.postEmail(ctx, "/auth/forgot-password", email)
}

// ResetPassword sets a new password with the token from the reset link.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	var resp MessageResponse
	if err := c.call(ctx, http.MethodPost, "/auth/reset-password", req, "", &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SDKClient) postEmail(ctx context.Context, path, email string) (*MessageResponse, error) {
	req := EmailRequest{Email: email}
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	var resp MessageResponse
	if err := c.call(ctx, http.MethodPost, path, req, "", &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SDKClient) verify(ctx context.Context, path string, req VerifyOTPRequest) (*AuthResponse, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := c.call(ctx, http.MethodPost, path, req, "", &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}
