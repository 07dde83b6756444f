package sqlite

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

const challengeColumns = `id, email, code_hash, purpose, admin_mode, attempts, issued_at, expires_at, consumed_at`

func scanChallenge(row rowScanner) (domain.Challenge, error) {
	var (
		c                   domain.Challenge
		issuedAt, expiresAt int64
		consumedAt          sql.NullInt64
	)
	if err := row.Scan(
		&c.ID, &c.Email, &c.CodeHash, &c.Purpose, &c.AdminMode, &c.Attempts,
		&issuedAt, &expiresAt, &consumedAt,
	); err != nil {
		return domain.Challenge{}, err
	}
	c.IssuedAt = fromMillis(issuedAt)
	c.ExpiresAt = fromMillis(expiresAt)
	c.ConsumedAt = mapNullMillis(consumedAt)
	return c, nil
}

func (r *challengesRepo) ReplaceChallenge(ctx context.Context, c domain.Challenge) error {
	return withinTx(ctx, r.db, func(db DBTX) error {
		if _, err := db.ExecContext(ctx,
			`UPDATE otp_challenges SET consumed_at = ? WHERE email = ? AND consumed_at IS NULL`,
			toMillis(c.IssuedAt), c.Email,
		); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO otp_challenges (id, email, code_hash, purpose, admin_mode, attempts, issued_at, expires_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			c.ID, c.Email, c.CodeHash, c.Purpose, c.AdminMode, toMillis(c.IssuedAt), toMillis(c.ExpiresAt),
		)
		return mapConstraint(err)
	})
}

func (r *challengesRepo) GetChallenge(ctx context.Context, email string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM otp_challenges
		WHERE email = ? AND consumed_at IS NULL
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
		WHERE email = ? AND code_hash = ?
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
		WHERE id = ? AND consumed_at IS NULL AND attempts < ?
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
		`SELECT consumed_at IS NULL FROM otp_challenges WHERE id = ?`, id,
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
		UPDATE otp_challenges SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL AND expires_at > ?`,
		toMillis(now), id, toMillis(now),
	))
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at <= ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// withinTx runs fn in a transaction when db is the root handle, or directly
// when the caller already holds one.
func withinTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	sqlDB, ok := db.(*sql.DB)
	if !ok {
		return fn(db)
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
