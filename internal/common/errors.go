// Package common defines shared constants and sentinel errors used across
// the authkeeper core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("invalid credentials")
	ErrorUnavailable  = errors.New("backend unavailable")

	// Validation errors (malformed input, bad payloads).
	ErrorValidation = errors.New("validation error")

	// Action token errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
