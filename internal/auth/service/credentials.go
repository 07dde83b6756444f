package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/pkg/cryptox"
	"github.com/aussiebroadwan/quickfix/pkg/idx"
	"github.com/aussiebroadwan/quickfix/pkg/slogx"
)

// DefaultOAuthName is used when neither the caller nor Google supply a name.
const DefaultOAuthName = "Google User"

// NewUser is a self-registration request.
type NewUser struct {
	Email        string
	FullName     string
	Password     string
	Phone        string
	Organization string
	ProfileImage string
}

// CredentialStore owns user records and password verification.
type CredentialStore struct {
	Store store.Store
}

// Create registers a password account. Two concurrent calls for the same
// email cannot both succeed: the unique index on users.email decides.
func (c *CredentialStore) Create(ctx context.Context, nu NewUser) (domain.User, error) {
	email := NormalizeEmail(nu.Email)
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := validatePassword(nu.Password); err != nil {
		return domain.User{}, err
	}

	profile, err := normalizeProfile(domain.ProfileUpdate{
		FullName:     &nu.FullName,
		Phone:        &nu.Phone,
		Organization: &nu.Organization,
		ProfileImage: &nu.ProfileImage,
	})
	if err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(nu.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	u := profile.Apply(domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: &hash,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if err := c.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// VerifyPassword checks a password against the stored hash. Unknown
// emails, inactive and OAuth-only accounts still run a full argon2
// comparison so response time does not reveal which case applied.
func (c *CredentialStore) VerifyPassword(ctx context.Context, email, password string) (domain.User, bool, error) {
	u, err := c.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, false, fmt.Errorf("failed to load user: %w", err)
	}

	if err != nil || !u.HasPassword() || !u.IsActive {
		_ = cryptox.VerifyDummy(password)
		return domain.User{}, false, nil
	}

	if err := cryptox.VerifyPassword(password, *u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Error("stored password hash unreadable", "user_id", u.ID, "error", err)
		}
		return domain.User{}, false, nil
	}

	if cryptox.NeedsRehash(*u.PasswordHash) {
		c.rehash(ctx, u, password)
	}
	return u, true, nil
}

// rehash upgrades a hash made with older argon2 parameters. Failure only
// costs the upgrade, the sign-in itself already succeeded.
func (c *CredentialStore) rehash(ctx context.Context, u domain.User, password string) {
	hash, err := cryptox.HashPassword(password)
	if err == nil {
		err = c.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("password rehash failed", "user_id", u.ID, "error", err)
		return
	}
	slogx.FromContext(ctx).Info("password rehashed", "user_id", u.ID)
}

// Update merges the provided profile members into the account for email.
// Password and role are not part of ProfileUpdate and cannot change here.
func (c *CredentialStore) Update(ctx context.Context, email string, p domain.ProfileUpdate) (domain.User, error) {
	p, err := normalizeProfile(p)
	if err != nil {
		return domain.User{}, err
	}

	u, err := c.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	if p.Empty() {
		return u, nil
	}

	u = p.Apply(u)
	if err := c.Store.Users().UpdateProfile(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return c.GetByID(ctx, u.ID)
}

// SetRole changes the role of the account for email.
func (c *CredentialStore) SetRole(ctx context.Context, email, role string) (domain.User, error) {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("%w: role must be %q or %q", ErrValidation, domain.RoleUser, domain.RoleAdmin)
	}

	u, err := c.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	if u.Role == role {
		return u, nil
	}
	if err := c.Store.Users().UpdateRole(ctx, u.ID, role); err != nil {
		return domain.User{}, fmt.Errorf("failed to update role: %w", err)
	}
	u.Role = role
	return u, nil
}

// SetActive enables or disables the account for email. Disabling takes
// effect on the next request of every existing session.
func (c *CredentialStore) SetActive(ctx context.Context, email string, active bool) (domain.User, error) {
	u, err := c.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	if u.IsActive == active {
		return u, nil
	}
	if err := c.Store.Users().UpdateActive(ctx, u.ID, active); err != nil {
		return domain.User{}, fmt.Errorf("failed to update account status: %w", err)
	}
	u.IsActive = active
	return u, nil
}

func (c *CredentialStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	parsed, err := idx.Parse(id)
	if err != nil {
		return domain.User{}, ErrUserNotFound
	}
	u, err := c.Store.Users().GetUserByID(ctx, parsed.String())
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func (c *CredentialStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := c.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func (c *CredentialStore) List(ctx context.Context) ([]domain.User, error) {
	return c.Store.Users().ListUsers(ctx)
}

// FindOrCreateOAuthUser resolves a Google identity to an account. Lookup
// is by Google subject first, then by email, in which case the subject is
// linked to the existing account. Unknown identities get an OAuth-only
// account with no password.
func (c *CredentialStore) FindOrCreateOAuthUser(ctx context.Context, email, name, googleID string) (domain.User, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}

	if googleID != "" {
		u, err := c.Store.Users().GetUserByGoogleID(ctx, googleID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.User{}, fmt.Errorf("failed to load user: %w", err)
		}
	}

	u, err := c.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if googleID != "" && u.GoogleID == nil {
			if err := c.Store.Users().LinkGoogleID(ctx, u.ID, googleID); err != nil {
				return domain.User{}, fmt.Errorf("failed to link google account: %w", err)
			}
			u.GoogleID = &googleID
		}
		return u, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, fmt.Errorf("failed to load user: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultOAuthName
	}
	if len([]rune(name)) > MaxFullNameLength {
		name = string([]rune(name)[:MaxFullNameLength])
	}

	now := time.Now().UTC()
	u = domain.User{
		ID:        idx.New().String(),
		Email:     email,
		FullName:  name,
		Role:      domain.RoleUser,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if googleID != "" {
		u.GoogleID = &googleID
	}

	err = c.Store.Users().CreateUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent first sign-in for the same address.
		return c.GetByEmail(ctx, email)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}
