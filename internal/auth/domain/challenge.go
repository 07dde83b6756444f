package domain

import "time"

// Challenge purposes. A code issued for one purpose cannot complete the
// other flow.
const (
	PurposeLogin  = "login"
	PurposeGoogle = "google"
)

// Challenge is a pending one-time code sent to an email address.
type Challenge struct {
	ID         string
	Email      string
	CodeHash   string // deterministic fingerprint of email:code
	Purpose    string
	AdminMode  bool
	Attempts   int // failed verifications so far
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Active reports whether the challenge can still be verified at now.
func (c Challenge) Active(now time.Time, maxAttempts int) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt) && c.Attempts < maxAttempts
}
