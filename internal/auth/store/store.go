package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConflict is returned when a conditional write lost a race.
	ErrConflict = errors.New("store: conflict")
	// ErrNestedTx is returned by Tx and WithTx on a store that is already
	// a transaction.
	ErrNestedTx = errors.New("store: transaction already open")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so that transactions cannot be nested by accident.
type Store interface {
	Users() Users
	Challenges() Challenges
	ResetTokens() ResetTokens
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks the user up by lowercased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByGoogleID looks the user up by Google subject.
	GetUserByGoogleID(ctx context.Context, googleID string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists when the email
	// (or google id) is taken; the unique index makes this atomic.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile writes the profile members of u (not password, not role)
	// and bumps updated_at.
	UpdateProfile(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateRole sets the role and bumps updated_at.
	UpdateRole(ctx context.Context, userID string, role string) error

	// UpdateActive enables or disables sign-in for the account.
	UpdateActive(ctx context.Context, userID string, active bool) error

	// LinkGoogleID attaches a Google subject to an existing account.
	LinkGoogleID(ctx context.Context, userID string, googleID string) error

	// ListUsers returns all users ordered by creation date (newest first).
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Challenges stores one-time code challenges. It is implemented by the SQL
// drivers and by the redis driver, so it is kept separate from Store and
// does not participate in transactions.
type Challenges interface {
	// ReplaceChallenge supersedes any unconsumed challenge for c.Email and
	// stores c. Superseded challenges are kept until they expire.
	ReplaceChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallenge returns the latest unconsumed challenge for email,
	// including expired ones so callers can tell expiry from absence.
	GetChallenge(ctx context.Context, email string) (domain.Challenge, error)

	// FindChallengeByCode returns a challenge for email with the given code
	// fingerprint in any state, so a superseded or used code can be told
	// apart from a wrong one.
	FindChallengeByCode(ctx context.Context, email string, codeHash string) (domain.Challenge, error)

	// ReserveChallengeAttempt counts one attempt against an unconsumed
	// challenge before its code is compared, and returns the updated record.
	// Returns ErrConflict once maxAttempts have been reserved and ErrNotFound
	// when the challenge is consumed or gone.
	ReserveChallengeAttempt(ctx context.Context, id string, maxAttempts int) (domain.Challenge, error)

	// ConsumeChallenge marks the challenge consumed if it is still
	// unconsumed and unexpired. Returns ErrConflict otherwise.
	ConsumeChallenge(ctx context.Context, id string, now time.Time) error

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokens interface {
	// ReplaceResetToken removes any token for t.Email and stores t.
	ReplaceResetToken(ctx context.Context, t domain.ResetToken) error

	// GetResetToken returns the unconsumed token for email with the given
	// hash, including expired ones.
	GetResetToken(ctx context.Context, email string, tokenHash string) (domain.ResetToken, error)

	// ConsumeResetToken marks the token consumed if still unconsumed.
	// Returns ErrConflict otherwise.
	ConsumeResetToken(ctx context.Context, id string, now time.Time) error

	// DeleteExpiredResetTokens is housekeeping.
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByHash returns an unrevoked session by token fingerprint.
	GetSessionByHash(ctx context.Context, tokenHash string) (domain.Session, error)

	// RevokeSession flips revoked_at for one session.
	RevokeSession(ctx context.Context, id string, now time.Time) error

	// RevokeUserSessions revokes every session of a user (password reset).
	RevokeUserSessions(ctx context.Context, userID string, now time.Time) error

	// DeleteExpiredSessions is housekeeping; it also drops revoked sessions.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
