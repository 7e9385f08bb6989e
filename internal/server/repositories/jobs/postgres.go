// Package jobs provides the PostgreSQL-backed work queue storage. Claiming
// uses FOR UPDATE SKIP LOCKED so an in-flight job is held by exactly one
// worker while its lease lasts.
package jobs

import (
	"context"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/dbx"
	"github.com/avolkovs/authkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const jobColumns = `id, type, payload, state, attempts, max_attempts, run_at,
		locked_until, last_error, created_at, updated_at`

func scanJob(row interface{ Scan(dest ...any) error }) (*models.Job, error) {
	job := &models.Job{}
	err := row.Scan(&job.ID, &job.Type, &job.Payload, &job.State, &job.Attempts,
		&job.MaxAttempts, &job.RunAt, &job.LockedUntil, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, dbx.NormalizeError(err)
	}
	return job, nil
}

// Create inserts a new waiting job. The insert is idempotent on the job id:
// if a job with the same id already exists, the existing row is returned
// unchanged and no second job is created.
func (r *PostgresRepository) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	query := `
		INSERT INTO jobs (id, type, payload, max_attempts, run_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Type, job.Payload, job.MaxAttempts, job.RunAt)
	if err != nil {
		return nil, dbx.NormalizeError(err)
	}

	// Read back either the fresh row or the one enqueued earlier under the
	// same idempotency key.
	return r.Get(ctx, job.ID)
}

// Get returns the job with the given id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

// ClaimNext leases the oldest runnable job to the caller: either a waiting
// job whose run_at has passed, or an active job whose lease expired without
// an acknowledgment (crashed or stalled worker). The claim is one statement
// with FOR UPDATE SKIP LOCKED, so concurrent workers never receive the same
// job while a lease is valid. Returns common.ErrorNotFound when no job is
// runnable.
func (r *PostgresRepository) ClaimNext(ctx context.Context, now time.Time, leaseTTL time.Duration) (*models.Job, error) {
	query := `
		UPDATE jobs
		SET state = 'active', attempts = attempts + 1, locked_until = $2, updated_at = now()
		WHERE id = (
			SELECT id
			FROM jobs
			WHERE (state = 'waiting' AND run_at <= $1)
			   OR (state = 'active' AND locked_until <= $1)
			ORDER BY run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns + `
	`
	return scanJob(r.db.QueryRowContext(ctx, query, now, now.Add(leaseTTL)))
}

// MarkCompleted acknowledges a delivered job.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET state = 'completed', locked_until = NULL, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// MarkFailed retires a job permanently. Failed jobs are retained for
// inspection, never deleted.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE jobs
		SET state = 'failed', locked_until = NULL, last_error = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, lastError)
}

// Reschedule returns a job to the waiting state with a new run_at, recording
// the error that caused the retry.
func (r *PostgresRepository) Reschedule(ctx context.Context, id string, runAt time.Time, lastError string) error {
	query := `
		UPDATE jobs
		SET state = 'waiting', run_at = $2, locked_until = NULL, last_error = $3, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, runAt, lastError)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbx.NormalizeError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return dbx.NormalizeError(err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}
