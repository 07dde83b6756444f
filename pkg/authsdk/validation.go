package authsdk

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	requiredReason = "required"

	maxEmailLength        = 254
	maxPasswordLength     = 128
	maxFullNameLength     = 100
	maxPhoneLength        = 20
	maxOrganizationLength = 100
	maxProfileImageLength = 500
	maxBioLength          = 500
	maxLocationLength     = 100
	otpLength             = 6
)

// ValidateEmail checks that email is a bare address (no display name)
// with a dotted domain. The server applies the same rule.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return ErrValidation.WithDescription("email is required").WithFields(map[string]string{"email": requiredReason})
	case len(email) > maxEmailLength:
		return ErrValidation.WithDescription("email is too long").WithFields(map[string]string{"email": "too long"})
	}
	if msg := emailProblem(email); msg != "" {
		return ErrValidation.WithDescription("enter a valid email address").WithFields(map[string]string{"email": msg})
	}
	return nil
}

func emailProblem(email string) string {
	addr, err := mail.ParseAddress(email)
	if err != nil || !strings.EqualFold(addr.Address, email) {
		return "not a valid address"
	}
	at := strings.LastIndex(email, "@")
	if !strings.Contains(email[at:], ".") {
		return "domain must contain a dot"
	}
	return ""
}

// Validate checks the register form.
// Returns a map of field names to error messages, or nil if all fields are valid.
func (r RegisterRequest) Validate() map[string]string {
	errs := make(map[string]string)

	validateEmailField(errs, "email", r.Email)
	validatePasswordField(errs, "password", r.Password)
	validateMax(errs, "full_name", r.FullName, maxFullNameLength)
	validateMax(errs, "phone", r.Phone, maxPhoneLength)
	validateMax(errs, "organization", r.Organization, maxOrganizationLength)
	validateMax(errs, "profile_image", r.ProfileImage, maxProfileImageLength)

	return orNil(errs)
}

func (r LoginPasswordRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateEmailField(errs, "email", r.Email)
	if r.Password == "" {
		errs["password"] = requiredReason
	}
	return orNil(errs)
}

func (r EmailRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateEmailField(errs, "email", r.Email)
	return orNil(errs)
}

// Validate checks that OTP is exactly six digits.
func (r VerifyOTPRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateEmailField(errs, "email", r.Email)

	code := strings.TrimSpace(r.OTP)
	switch {
	case code == "":
		errs["otp"] = requiredReason
	case len(code) != otpLength || strings.Trim(code, "0123456789") != "":
		errs["otp"] = fmt.Sprintf("must be %d digits", otpLength)
	}
	return orNil(errs)
}

func (r GoogleLoginRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(r.Token) == "" {
		errs["token"] = requiredReason
	}
	validateMax(errs, "name", r.Name, maxFullNameLength)
	return orNil(errs)
}

func (r ResetPasswordRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateEmailField(errs, "email", r.Email)
	if strings.TrimSpace(r.ResetToken) == "" {
		errs["reset_token"] = requiredReason
	}
	validatePasswordField(errs, "new_password", r.NewPassword)
	return orNil(errs)
}

func (r UpdateProfileRequest) Validate() map[string]string {
	errs := make(map[string]string)
	fields := []struct {
		name  string
		value *string
		limit int
	}{
		{"full_name", r.FullName, maxFullNameLength},
		{"phone", r.Phone, maxPhoneLength},
		{"organization", r.Organization, maxOrganizationLength},
		{"profile_image", r.ProfileImage, maxProfileImageLength},
		{"bio", r.Bio, maxBioLength},
		{"location", r.Location, maxLocationLength},
	}
	for _, f := range fields {
		if f.value != nil {
			validateMax(errs, f.name, *f.value, f.limit)
		}
	}
	return orNil(errs)
}

// Empty reports whether no member is set.
func (r UpdateProfileRequest) Empty() bool {
	return r.FullName == nil && r.Phone == nil && r.Organization == nil &&
		r.ProfileImage == nil && r.Bio == nil && r.Location == nil
}

func validateEmailField(errs map[string]string, field, email string) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		errs[field] = requiredReason
	case len(email) > maxEmailLength:
		errs[field] = "too long"
	default:
		if msg := emailProblem(email); msg != "" {
			errs[field] = msg
		}
	}
}

func validatePasswordField(errs map[string]string, field, pw string) {
	switch n := utf8.RuneCountInString(pw); {
	case n == 0:
		errs[field] = requiredReason
	case n > maxPasswordLength:
		errs[field] = fmt.Sprintf("too long (max %d)", maxPasswordLength)
	}
}

func validateMax(errs map[string]string, field, value string, limit int) {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > limit {
		errs[field] = fmt.Sprintf("too long (max %d)", limit)
	}
}

func orNil(errs map[string]string) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validationError wraps a Validate result as an *APIError.
func validationError(fields map[string]string) error {
	if fields == nil {
		return nil
	}
	return ErrValidation.WithFields(fields)
}
