package domain

import "time"

// Roles a user can hold. Admin is only granted through the allowlisted
// admin login paths or the setadmin operator tool.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

type User struct {
	ID           string
	Email        string // stored lowercased, unique
	FullName     string
	PasswordHash *string // argon2 encoded, nil for OAuth-only accounts
	GoogleID     *string
	Phone        string
	Organization string
	ProfileImage string
	Role         string
	Bio          string
	Location     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ProfileUpdate carries the optional members of a profile edit. A nil
// member keeps the stored value.
type ProfileUpdate struct {
	FullName     *string
	Phone        *string
	Organization *string
	ProfileImage *string
	Bio          *string
	Location     *string
}

// Empty reports whether no member was provided.
func (p ProfileUpdate) Empty() bool {
	return p.FullName == nil && p.Phone == nil && p.Organization == nil &&
		p.ProfileImage == nil && p.Bio == nil && p.Location == nil
}

// Apply merges the provided members into u and returns the result.
func (p ProfileUpdate) Apply(u User) User {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Organization != nil {
		u.Organization = *p.Organization
	}
	if p.ProfileImage != nil {
		u.ProfileImage = *p.ProfileImage
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	return u
}
