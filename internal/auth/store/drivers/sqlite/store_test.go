package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestUser(email string) domain.User {
	hash := "argon2id$dummy"
	return domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FullName:     "Alice",
		PasswordHash: &hash,
		Phone:        "+61400000000",
		Organization: "Acme",
		Role:         domain.RoleUser,
		IsActive:     true,
	}
}

func TestUsersCreateAndLookup(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	u := newTestUser("a@x.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "Acme", got.Organization)
	require.True(t, got.HasPassword())
	require.True(t, got.IsActive)
	require.Nil(t, got.GoogleID)

	_, err = s.Users().GetUserByEmail(ctx, "missing@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := newTestUser("a@x.com")
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
}

func TestUsersConcurrentCreateSameEmail(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Users().CreateUser(ctx, newTestUser("race@x.com"))
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	}
	require.Equal(t, 1, created)
}

func TestUsersUpdates(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	u := newTestUser("b@x.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	u.Bio = "hello"
	u.Location = "Sydney"
	require.NoError(t, s.Users().UpdateProfile(ctx, u))
	require.NoError(t, s.Users().UpdateRole(ctx, u.ID, domain.RoleAdmin))
	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "argon2id$other"))
	require.NoError(t, s.Users().LinkGoogleID(ctx, u.ID, "google-sub"))
	require.NoError(t, s.Users().UpdateActive(ctx, u.ID, false))

	got, err := s.Users().GetUserByGoogleID(ctx, "google-sub")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Bio)
	require.Equal(t, "Sydney", got.Location)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.Equal(t, "argon2id$other", *got.PasswordHash)
	require.False(t, got.IsActive)

	require.ErrorIs(t, s.Users().UpdateRole(ctx, "missing", domain.RoleAdmin), store.ErrNotFound)

	users, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestChallengesLifecycle(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)
	now := time.Now()

	first := domain.Challenge{
		ID: idx.New().String(), Email: "c@x.com", CodeHash: "h1", Purpose: domain.PurposeLogin,
		IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, first))

	second := first
	second.ID = idx.New().String()
	second.CodeHash = "h2"
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, second))

	got, err := s.Challenges().GetChallenge(ctx, "c@x.com")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID, "reissue replaces the previous challenge")
	require.Equal(t, 0, got.Attempts)

	got, err = s.Challenges().ReserveChallengeAttempt(ctx, second.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	require.NoError(t, s.Challenges().ConsumeChallenge(ctx, second.ID, time.Now()))
	require.ErrorIs(t, s.Challenges().ConsumeChallenge(ctx, second.ID, time.Now()), store.ErrConflict)

	_, err = s.Challenges().GetChallenge(ctx, "c@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	old, err := s.Challenges().FindChallengeByCode(ctx, "c@x.com", "h1")
	require.NoError(t, err)
	require.Equal(t, first.ID, old.ID)
	require.NotNil(t, old.ConsumedAt, "superseded challenges are closed")

	_, err = s.Challenges().FindChallengeByCode(ctx, "c@x.com", "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	removed, err := s.Challenges().DeleteExpiredChallenges(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(0), removed, "used challenges are kept until they expire")

	removed, err = s.Challenges().DeleteExpiredChallenges(ctx, now.Add(11*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)
}

func TestChallengesReserveStopsAtCeiling(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)
	now := time.Now()

	c := domain.Challenge{
		ID: idx.New().String(), Email: "d@x.com", CodeHash: "h", Purpose: domain.PurposeLogin,
		IssuedAt: now, ExpiresAt: now.Add(time.Minute),
	}
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, c))
	for i := range 2 {
		got, err := s.Challenges().ReserveChallengeAttempt(ctx, c.ID, 2)
		require.NoError(t, err)
		require.Equal(t, i+1, got.Attempts)
	}

	_, err := s.Challenges().ReserveChallengeAttempt(ctx, c.ID, 2)
	require.ErrorIs(t, err, store.ErrConflict)
	got, err := s.Challenges().GetChallenge(ctx, "d@x.com")
	require.NoError(t, err)
	require.Equal(t, 2, got.Attempts, "a refused reservation is not counted")

	require.NoError(t, s.Challenges().ConsumeChallenge(ctx, c.ID, time.Now()))
	_, err = s.Challenges().ReserveChallengeAttempt(ctx, c.ID, 2)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Challenges().ReserveChallengeAttempt(ctx, idx.New().String(), 2)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResetTokensSingleUse(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)
	now := time.Now()

	tok := domain.ResetToken{
		ID: idx.New().String(), Email: "e@x.com", TokenHash: "th",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.ResetTokens().ReplaceResetToken(ctx, tok))

	got, err := s.ResetTokens().GetResetToken(ctx, "e@x.com", "th")
	require.NoError(t, err)
	require.Equal(t, tok.ID, got.ID)

	_, err = s.ResetTokens().GetResetToken(ctx, "other@x.com", "th")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.ResetTokens().ConsumeResetToken(ctx, tok.ID, time.Now()))
	require.ErrorIs(t, s.ResetTokens().ConsumeResetToken(ctx, tok.ID, time.Now()), store.ErrConflict)

	_, err = s.ResetTokens().GetResetToken(ctx, "e@x.com", "th")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSchemaAllowsOneLiveSecretPerEmail(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.ResetTokens().ReplaceResetToken(ctx, domain.ResetToken{
		ID: idx.New().String(), Email: "g@x.com", TokenHash: "t1",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reset_tokens (id, email, token_hash, issued_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		idx.New().String(), "g@x.com", "t2", toMillis(now), toMillis(now.Add(time.Hour)),
	)
	require.ErrorIs(t, mapConstraint(err), store.ErrAlreadyExists)

	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, domain.Challenge{
		ID: idx.New().String(), Email: "g@x.com", CodeHash: "c1", Purpose: domain.PurposeLogin,
		IssuedAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (id, email, code_hash, purpose, issued_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		idx.New().String(), "g@x.com", "c2", domain.PurposeLogin, toMillis(now), toMillis(now.Add(time.Minute)),
	)
	require.ErrorIs(t, mapConstraint(err), store.ErrAlreadyExists)
}

func TestSessionsRevocation(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	u := newTestUser("f@x.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	now := time.Now()
	for _, hash := range []string{"s1", "s2"} {
		require.NoError(t, s.Sessions().CreateSession(ctx, domain.Session{
			ID: idx.New().String(), TokenHash: hash, UserID: u.ID, Method: domain.MethodPassword,
			CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
	}

	s1, err := s.Sessions().GetSessionByHash(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Sessions().RevokeSession(ctx, s1.ID, time.Now()))
	_, err = s.Sessions().GetSessionByHash(ctx, "s1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Sessions().RevokeUserSessions(ctx, u.ID, time.Now()))
	_, err = s.Sessions().GetSessionByHash(ctx, "s2")
	require.ErrorIs(t, err, store.ErrNotFound)

	removed, err := s.Sessions().DeleteExpiredSessions(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, newTestUser("g@x.com")))
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Users().GetUserByEmail(ctx, "g@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxCommitsAndRefusesNesting(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Tx(ctx)
		require.ErrorIs(t, err, store.ErrNestedTx)
		require.ErrorIs(t, tx.WithTx(ctx, func(store.Tx) error { return nil }), store.ErrNestedTx)
		return tx.Users().CreateUser(ctx, newTestUser("h@x.com"))
	})
	require.NoError(t, err)

	_, err = s.Users().GetUserByEmail(ctx, "h@x.com")
	require.NoError(t, err)
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
}
