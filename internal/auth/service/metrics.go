package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickfix",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by method and outcome.",
	}, []string{"method", "outcome"})

	otpIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickfix",
		Subsystem: "auth",
		Name:      "otp_issued_total",
		Help:      "One-time codes issued by purpose.",
	}, []string{"purpose"})

	otpVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickfix",
		Subsystem: "auth",
		Name:      "otp_verifications_total",
		Help:      "One-time code verifications by outcome.",
	}, []string{"outcome"})

	passwordResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickfix",
		Subsystem: "auth",
		Name:      "password_resets_total",
		Help:      "Password reset requests and completions by outcome.",
	}, []string{"stage", "outcome"})

	housekeepingDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickfix",
		Subsystem: "auth",
		Name:      "housekeeping_deleted_total",
		Help:      "Expired records removed by housekeeping.",
	}, []string{"kind"})
)

var outcomeLabels = []struct {
	err   error
	label string
}{
	{ErrValidation, "validation_error"},
	{ErrDuplicateEmail, "duplicate_email"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNoActiveChallenge, "no_active_challenge"},
	{ErrCodeMismatch, "code_mismatch"},
	{ErrCodeExpired, "code_expired"},
	{ErrMaxAttemptsExceeded, "max_attempts_exceeded"},
	{ErrInvalidToken, "invalid_token"},
	{ErrExpiredToken, "expired_token"},
	{ErrProviderFailed, "provider_error"},
	{ErrDeliveryFailed, "delivery_error"},
}

// outcome maps an error to a short metric label.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, o := range outcomeLabels {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

// now returns the injected clock reading, or the wall clock.
func now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}
