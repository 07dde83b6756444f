package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
)

type usersRepo struct {
	db DBTX
}

func (r *usersRepo) getOne(ctx context.Context, where string, arg any) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *usersRepo) GetUserByGoogleID(ctx context.Context, googleID string) (domain.User, error) {
	return r.getOne(ctx, "google_id", googleID)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, full_name, password_hash, google_id, phone, organization,
			profile_image, role, bio, location, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.Email, u.FullName, mapOptionalString(u.PasswordHash), mapOptionalString(u.GoogleID),
		u.Phone, u.Organization, u.ProfileImage, u.Role, u.Bio, u.Location, u.IsActive,
		u.CreatedAt, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, u domain.User) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = $1, phone = $2, organization = $3, profile_image = $4, bio = $5, location = $6, updated_at = $7
		WHERE id = $8`,
		u.FullName, u.Phone, u.Organization, u.ProfileImage, u.Bio, u.Location, time.Now().UTC(), u.ID,
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHash, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, role string) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`,
		role, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) UpdateActive(ctx context.Context, userID string, active bool) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) LinkGoogleID(ctx context.Context, userID string, googleID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET google_id = $1, updated_at = $2 WHERE id = $3`,
		googleID, time.Now().UTC(), userID,
	)
	return mapNotFoundAffected(res, mapConstraint(err))
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
