package domain

import "time"

// Authentication methods recorded on a session.
const (
	MethodPassword = "password"
	MethodOTP      = "otp"
	MethodGoogle   = "google"
)

// Session is the server-side record behind an opaque bearer token.
type Session struct {
	ID        string
	TokenHash string
	UserID    string
	Method    string
	AdminMode bool
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// AuthResult is what every successful login path returns.
type AuthResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	Session     Session
	User        User
}
