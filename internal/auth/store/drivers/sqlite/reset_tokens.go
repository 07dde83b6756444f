package sqlite

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
		if _, err := db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE email = ?`, t.Email); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO reset_tokens (id, email, token_hash, issued_at, expires_at)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Email, t.TokenHash, toMillis(t.IssuedAt), toMillis(t.ExpiresAt),
		)
		return mapConstraint(err)
	})
}

func (r *resetTokensRepo) GetResetToken(ctx context.Context, email string, tokenHash string) (domain.ResetToken, error) {
	var (
		t                   domain.ResetToken
		issuedAt, expiresAt int64
		consumedAt          sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, token_hash, issued_at, expires_at, consumed_at
		FROM reset_tokens
		WHERE email = ? AND token_hash = ? AND consumed_at IS NULL`,
		email, tokenHash,
	).Scan(&t.ID, &t.Email, &t.TokenHash, &issuedAt, &expiresAt, &consumedAt)
	if err != nil {
		return domain.ResetToken{}, mapNotFound(err)
	}
	t.IssuedAt = fromMillis(issuedAt)
	t.ExpiresAt = fromMillis(expiresAt)
	t.ConsumedAt = mapNullMillis(consumedAt)
	return t, nil
}

func (r *resetTokensRepo) ConsumeResetToken(ctx context.Context, id string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE reset_tokens SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL AND expires_at > ?`,
		toMillis(now), id, toMillis(now),
	))
}

func (r *resetTokensRepo) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE expires_at <= ? OR consumed_at IS NOT NULL`,
		toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
