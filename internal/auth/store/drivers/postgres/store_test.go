package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway postgres container and returns a
// migrated Store. The test is skipped when no container runtime is available.
func setupPostgres(t *testing.T) *Store {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "quickfix",
			"POSTGRES_PASSWORD": "quickfix",
			"POSTGRES_DB":       "quickfix",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://quickfix:quickfix@%s:%s/quickfix?sslmode=disable", host, port.Port())
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestPostgresStore(t *testing.T) {
	s := setupPostgres(t)
	ctx := t.Context()

	hash := "argon2id$dummy"
	u := domain.User{
		ID: idx.New().String(), Email: "a@x.com", FullName: "Alice", PasswordHash: &hash,
		Role: domain.RoleUser, IsActive: true,
	}

	t.Run("unique email", func(t *testing.T) {
		require.NoError(t, s.Users().CreateUser(ctx, u))

		dup := u
		dup.ID = idx.New().String()
		require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("challenge consume is single use", func(t *testing.T) {
		now := time.Now()
		c := domain.Challenge{
			ID: idx.New().String(), Email: u.Email, CodeHash: "h", Purpose: domain.PurposeLogin,
			IssuedAt: now, ExpiresAt: now.Add(time.Minute),
		}
		require.NoError(t, s.Challenges().ReplaceChallenge(ctx, c))

		got, err := s.Challenges().ReserveChallengeAttempt(ctx, c.ID, 1)
		require.NoError(t, err)
		require.Equal(t, 1, got.Attempts)
		_, err = s.Challenges().ReserveChallengeAttempt(ctx, c.ID, 1)
		require.ErrorIs(t, err, store.ErrConflict)

		require.NoError(t, s.Challenges().ConsumeChallenge(ctx, c.ID, time.Now()))
		require.ErrorIs(t, s.Challenges().ConsumeChallenge(ctx, c.ID, time.Now()), store.ErrConflict)
		_, err = s.Challenges().ReserveChallengeAttempt(ctx, c.ID, 5)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("reset consumes inside a transaction", func(t *testing.T) {
		now := time.Now()
		tok := domain.ResetToken{
			ID: idx.New().String(), Email: u.Email, TokenHash: "th",
			IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, s.ResetTokens().ReplaceResetToken(ctx, tok))

		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.ResetTokens().ConsumeResetToken(ctx, tok.ID, time.Now()); err != nil {
				return err
			}
			return tx.Users().UpdatePasswordHash(ctx, u.ID, "argon2id$new")
		})
		require.NoError(t, err)

		_, err = s.ResetTokens().GetResetToken(ctx, u.Email, "th")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent reset token replace leaves one live token", func(t *testing.T) {
		const n = 8
		now := time.Now()
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.ResetTokens().ReplaceResetToken(ctx, domain.ResetToken{
					ID: idx.New().String(), Email: "race@x.com", TokenHash: fmt.Sprintf("race-%d", i),
					IssuedAt: now, ExpiresAt: now.Add(time.Hour),
				})
			}()
		}
		wg.Wait()

		live := 0
		for i, err := range errs {
			require.NoError(t, err)
			if _, err := s.ResetTokens().GetResetToken(ctx, "race@x.com", fmt.Sprintf("race-%d", i)); err == nil {
				live++
			}
		}
		require.Equal(t, 1, live)
	})

	t.Run("concurrent challenge replace leaves one live challenge", func(t *testing.T) {
		const n = 8
		now := time.Now()
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Challenges().ReplaceChallenge(ctx, domain.Challenge{
					ID: idx.New().String(), Email: "race@x.com", CodeHash: fmt.Sprintf("race-%d", i),
					Purpose: domain.PurposeLogin, IssuedAt: now, ExpiresAt: now.Add(time.Minute),
				})
			}()
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		var live int
		require.NoError(t, s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM otp_challenges WHERE email = $1 AND consumed_at IS NULL`, "race@x.com",
		).Scan(&live))
		require.Equal(t, 1, live)
	})

	t.Run("sessions", func(t *testing.T) {
		now := time.Now()
		sess := domain.Session{
			ID: idx.New().String(), TokenHash: "st", UserID: u.ID, Method: domain.MethodPassword,
			CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, s.Sessions().CreateSession(ctx, sess))

		got, err := s.Sessions().GetSessionByHash(ctx, "st")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.UserID)

		require.NoError(t, s.Sessions().RevokeUserSessions(ctx, u.ID, time.Now()))
		_, err = s.Sessions().GetSessionByHash(ctx, "st")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
