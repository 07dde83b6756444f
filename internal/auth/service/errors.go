package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("not authorized for admin access")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidSession     = errors.New("invalid or expired session")

	// One-time code outcomes. ErrMaxAttemptsExceeded is terminal for the
	// challenge; a new code must be requested.
	ErrNoActiveChallenge   = errors.New("no active challenge")
	ErrCodeMismatch        = errors.New("code does not match")
	ErrCodeExpired         = errors.New("code expired")
	ErrMaxAttemptsExceeded = errors.New("maximum verification attempts exceeded")

	ErrInvalidToken = errors.New("invalid reset token")
	ErrExpiredToken = errors.New("reset token expired")

	// Upstream failures. Never reported to clients as bad credentials.
	ErrProviderFailed = errors.New("identity provider failed")
	ErrDeliveryFailed = errors.New("email delivery failed")
)
