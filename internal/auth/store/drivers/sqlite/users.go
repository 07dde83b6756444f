package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
)

type usersRepo struct {
	db DBTX
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByGoogleID(ctx context.Context, googleID string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, full_name, password_hash, google_id, phone, organization,
			profile_image, role, bio, location, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, mapOptionalString(u.PasswordHash), mapOptionalString(u.GoogleID),
		u.Phone, u.Organization, u.ProfileImage, u.Role, u.Bio, u.Location, u.IsActive,
		toMillis(u.CreatedAt), toMillis(now),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, u domain.User) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = ?, phone = ?, organization = ?, profile_image = ?, bio = ?, location = ?, updated_at = ?
		WHERE id = ?`,
		u.FullName, u.Phone, u.Organization, u.ProfileImage, u.Bio, u.Location, toMillis(time.Now()), u.ID,
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, role string) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		role, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) UpdateActive(ctx context.Context, userID string, active bool) error {
	return mapNotFoundAffected(r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) LinkGoogleID(ctx context.Context, userID string, googleID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET google_id = ?, updated_at = ? WHERE id = ?`,
		googleID, toMillis(time.Now()), userID,
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

// mapNotFoundAffected is requireAffected for updates addressed by id, where
// a missing row means the record does not exist.
func mapNotFoundAffected(res sql.Result, err error) error {
	err = requireAffected(res, err)
	if errors.Is(err, store.ErrConflict) {
		return store.ErrNotFound
	}
	return err
}
