// Package queue implements a durable, at-least-once job queue on top of the
// jobs repository. Producers enqueue typed payloads; a worker process leases
// jobs one at a time and redelivers them when a lease expires without an
// acknowledgment.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/models"
	"github.com/avolkovs/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Enqueuer is the producer-side surface handed to services. Collaborators
// outside the core enqueue through this interface as well.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts *EnqueueOptions) (*models.Job, error)
}

// EnqueueOptions tunes a single enqueue call.
type EnqueueOptions struct {
	// JobID pins the idempotency key. Enqueueing twice with the same JobID
	// creates one job. A random id is generated when empty.
	JobID string
	// MaxAttempts overrides the queue default when > 0.
	MaxAttempts int
	// RunAt delays the first delivery. Zero means "now".
	RunAt time.Time
}

// Queue is the producer half of the work queue.
type Queue struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	maxAttempts int
}

// NewQueue constructs a producer bound to the given database handle.
func NewQueue(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, maxAttempts int) *Queue {
	return &Queue{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "queue"),
		maxAttempts: maxAttempts,
	}
}

// Enqueue persists a job of the given type. The payload is marshaled to JSON;
// delivery is at-least-once, so the handler for jobType must tolerate seeing
// the same job id more than once.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, opts *EnqueueOptions) (*models.Job, error) {
	if jobType == "" {
		return nil, fmt.Errorf("%w: empty job type", common.ErrorValidation)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling payload: %v", common.ErrorValidation, err)
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     body,
		MaxAttempts: q.maxAttempts,
		RunAt:       time.Now(),
	}
	if opts != nil {
		if opts.JobID != "" {
			job.ID = opts.JobID
		}
		if opts.MaxAttempts > 0 {
			job.MaxAttempts = opts.MaxAttempts
		}
		if !opts.RunAt.IsZero() {
			job.RunAt = opts.RunAt
		}
	}

	created, err := q.repomanager.Jobs(q.db).Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("error enqueueing job: %w", err)
	}

	q.logger.Info(ctx, "Job enqueued", "job_id", created.ID, "type", created.Type)
	return created, nil
}
