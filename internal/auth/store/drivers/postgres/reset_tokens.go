package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
)

type resetTokensRepo struct {
	db DBTX
}

func (r *resetTokensRepo) ReplaceResetToken(ctx context.Context, t domain.ResetToken) error {
	return withinTx(ctx, r.db, func(db DBTX) error {
		if err := lockEmail(ctx, db, "reset_tokens", t.Email); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE email = $1`, t.Email); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO reset_tokens (id, email, token_hash, issued_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)`,
			t.ID, t.Email, t.TokenHash, t.IssuedAt.UTC(), t.ExpiresAt.UTC(),
		)
		return mapConstraint(err)
	})
}

func (r *resetTokensRepo) GetResetToken(ctx context.Context, email string, tokenHash string) (domain.ResetToken, error) {
	var (
		t          domain.ResetToken
		consumedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, token_hash, issued_at, expires_at, consumed_at
		FROM reset_tokens
		WHERE email = $1 AND token_hash = $2 AND consumed_at IS NULL`,
		email, tokenHash,
	).Scan(&t.ID, &t.Email, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &consumedAt)
	if err != nil {
		return domain.ResetToken{}, mapNotFound(err)
	}
	t.ConsumedAt = mapNullTimePtr(consumedAt)
	return t, nil
}

func (r *resetTokensRepo) ConsumeResetToken(ctx context.Context, id string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE reset_tokens SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL AND expires_at > $1`,
		now.UTC(), id,
	))
}

func (r *resetTokensRepo) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE expires_at <= $1 OR consumed_at IS NOT NULL`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
