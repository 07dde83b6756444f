package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
)

const (
	// MaxPasswordLength caps the argon2 input. Strength rules are left to
	// the client.
	MaxPasswordLength = 128
	maxEmailLength    = 254
)

// Profile field limits, in characters.
const (
	MaxFullNameLength     = 100
	MaxPhoneLength        = 20
	MaxOrganizationLength = 100
	MaxProfileImageLength = 500
	MaxBioLength          = 500
	MaxLocationLength     = 100
)

// NormalizeEmail trims and lowercases an address. Emails are compared and
// stored in this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email is too long", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return fmt.Errorf("%w: email is not a valid address", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n == 0:
		return fmt.Errorf("%w: password is required", ErrValidation)
	case n > MaxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d characters", ErrValidation, MaxPasswordLength)
	}
	return nil
}

func validateLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, limit)
	}
	return nil
}

// normalizeProfile trims every provided member and checks its length.
func normalizeProfile(p domain.ProfileUpdate) (domain.ProfileUpdate, error) {
	fields := []struct {
		name  string
		value **string
		limit int
	}{
		{"full_name", &p.FullName, MaxFullNameLength},
		{"phone", &p.Phone, MaxPhoneLength},
		{"organization", &p.Organization, MaxOrganizationLength},
		{"profile_image", &p.ProfileImage, MaxProfileImageLength},
		{"bio", &p.Bio, MaxBioLength},
		{"location", &p.Location, MaxLocationLength},
	}
	for _, f := range fields {
		if *f.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(**f.value)
		if err := validateLength(f.name, trimmed, f.limit); err != nil {
			return domain.ProfileUpdate{}, err
		}
		*f.value = &trimmed
	}
	return p, nil
}
