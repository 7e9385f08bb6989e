package models

import "time"

// Session stores the one-way hash of an opaque bearer token. The raw token
// value is never persisted.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
