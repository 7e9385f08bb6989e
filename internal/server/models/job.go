package models

import (
	"encoding/json"
	"time"
)

// JobState is the delivery state of a queued job.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Job is a durable unit of background work. The ID doubles as the
// idempotency key for side effects performed by handlers.
type Job struct {
	ID          string
	Type        string
	Payload     json.RawMessage
	State       JobState
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LockedUntil *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
