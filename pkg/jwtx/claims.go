package jwtx

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// IDClaims are the OpenID Connect ID token claims we read from Google.
type IDClaims struct {
	jwt.RegisteredClaims

	// Authorized party, the client the token was issued to.
	AZP string `json:"azp,omitempty"`

	Email         string   `json:"email,omitempty"`
	EmailVerified FlexBool `json:"email_verified,omitempty"`
	Name          string   `json:"name,omitempty"`
	Picture       string   `json:"picture,omitempty"`

	// Hosted domain for Workspace accounts.
	HD string `json:"hd,omitempty"`
}

// ValidateIssuer checks the issuer is one of expected. An empty list
// enforces nothing.
func (c *IDClaims) ValidateIssuer(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	if !slices.Contains(expected, c.Issuer) {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that at least one expected audience is present.
func (c *IDClaims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// FlexBool accepts both true and "true". Google has sent email_verified in
// both forms over the years.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return ErrInvalidClaim
		}
		*b = FlexBool(v)
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return ErrInvalidClaim
	}
	*b = FlexBool(v)
	return nil
}
