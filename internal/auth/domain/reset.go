package domain

import "time"

// ResetToken models the stored password reset token record.
type ResetToken struct {
	ID         string
	Email      string
	TokenHash  string // deterministic fingerprint (base64url SHA-256)
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}
