package authsdk

import "time"

// ============================================================================
// Request Types
// ============================================================================

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Password     string `json:"password"`
	Phone        string `json:"phone,omitempty"`
	Organization string `json:"organization,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// LoginPasswordRequest is the body of POST /auth/login-password. AdminMode
// selects the admin entry point, which only allowlisted emails may use.
type LoginPasswordRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	AdminMode bool   `json:"admin_mode,omitempty"`
}

// EmailRequest is the body of POST /auth/request-otp and
// POST /auth/forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest is the body of POST /auth/verify-otp and
// POST /auth/google-verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// GoogleLoginRequest is the body of POST /auth/google. Token is either a
// Google ID token or an OAuth access token.
type GoogleLoginRequest struct {
	Token     string `json:"token"`
	Name      string `json:"name,omitempty"`
	AdminMode bool   `json:"admin_mode,omitempty"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest is the body of PATCH /auth/update-profile. Omitted
// members are left unchanged.
type UpdateProfileRequest struct {
	FullName     *string `json:"full_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Organization *string `json:"organization,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	Location     *string `json:"location,omitempty"`
}

// ============================================================================
// Response Types
// ============================================================================

// User is the public view of an account. It never carries the password
// hash.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone"`
	Organization string    `json:"organization"`
	ProfileImage string    `json:"profile_image"`
	Role         string    `json:"role"`
	Bio          string    `json:"bio"`
	Location     string    `json:"location"`
	HasPassword  bool      `json:"has_password"`
	GoogleLinked bool      `json:"google_linked"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the Admin role.
func (u User) IsAdmin() bool {
	return u.Role == "Admin"
}

// AuthResponse is returned by every endpoint that signs the user in.
type AuthResponse struct {
	// AccessToken is the opaque bearer token for later calls
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the session lifetime in seconds
	ExpiresIn int `json:"expires_in"`

	// AdminMode is true for sessions opened through an admin entry point
	AdminMode bool `json:"admin_mode,omitempty"`

	User User `json:"user"`
}

// GoogleLoginResponse is returned by POST /auth/google. The sign-in is
// completed with the code mailed to Email.
type GoogleLoginResponse struct {
	RequiresOTP bool   `json:"requires_otp"`
	Email       string `json:"email"`
	Message     string `json:"message"`
}

// MessageResponse carries a user facing confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse wraps a single account.
type UserResponse struct {
	User User `json:"user"`
}

// UsersResponse wraps a list of accounts.
type UsersResponse struct {
	Users []User `json:"users"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the dependencies /readyz probes.
type HealthChecks struct {
	Database   string `json:"database"`
	Challenges string `json:"challenges"`
}
