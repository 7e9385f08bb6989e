// Package models contains the server-side data model shared by repositories
// and services.
package models

import "time"

// User is the credential-store identity record. It is mutated only through
// the lockout and session-issuance primitives of the users repository.
type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	FailedLoginAttempts   int
	LockedAt              *time.Time
	SessionsInvalidBefore *time.Time
	IsActive              bool
	EmailVerifiedAt       *time.Time
	RoleID                string
	CreatedAt             time.Time
}
