package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
)

type challengesRepo struct {
	db DBTX
}

func (r *challengesRepo) ReplaceChallenge(ctx context.Context, c domain.Challenge) error {
	return withinTx(ctx, r.db, func(db DBTX) error {
		if err := lockEmail(ctx, db, "otp_challenges", c.Email); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			`UPDATE otp_challenges SET consumed_at = $1 WHERE email = $2 AND consumed_at IS NULL`,
			c.IssuedAt.UTC(), c.Email,
		); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO otp_challenges (id, email, code_hash, purpose, admin_mode, attempts, issued_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`,
			c.ID, c.Email, c.CodeHash, c.Purpose, c.AdminMode, c.IssuedAt.UTC(), c.ExpiresAt.UTC(),
		)
		return mapConstraint(err)
	})
}

func (r *challengesRepo) GetChallenge(ctx context.Context, email string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM otp_challenges
		WHERE email = $1 AND consumed_at IS NULL
		ORDER BY issued_at DESC
		LIMIT 1`, email)
	c, err := scanChallenge(row)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) FindChallengeByCode(ctx context.Context, email, codeHash string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM otp_challenges
		WHERE email = $1 AND code_hash = $2
		ORDER BY issued_at DESC
		LIMIT 1`, email, codeHash)
	c, err := scanChallenge(row)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) ReserveChallengeAttempt(ctx context.Context, id string, maxAttempts int) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1 AND consumed_at IS NULL AND attempts < $2
		RETURNING `+challengeColumns, id, maxAttempts)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Challenge{}, r.reserveMiss(ctx, id)
	}
	if err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// reserveMiss tells a challenge at its ceiling from one that is gone.
func (r *challengesRepo) reserveMiss(ctx context.Context, id string) error {
	var live bool
	err := r.db.QueryRowContext(ctx,
		`SELECT consumed_at IS NULL FROM otp_challenges WHERE id = $1`, id,
	).Scan(&live)
	switch {
	case err != nil:
		return mapNotFound(err)
	case !live:
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r *challengesRepo) ConsumeChallenge(ctx context.Context, id string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE otp_challenges SET consumed_at = $1
		WHERE id = $2 AND consumed_at IS NULL AND expires_at > $1`,
		now.UTC(), id,
	))
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
