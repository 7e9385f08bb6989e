// Package sentmarkers provides a minimal keyed store recording which jobs
// have already performed their external send. A marker is written only after
// the transport call succeeded, so redelivery can duplicate a send in a
// narrow window but can never drop one.
package sentmarkers

import (
	"context"

	"github.com/avolkovs/authkeeper/internal/dbx"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Exists reports whether a marker for jobID has been written.
func (r *PostgresRepository) Exists(ctx context.Context, jobID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sent_markers WHERE job_id = $1
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, jobID).Scan(&exists); err != nil {
		return false, dbx.NormalizeError(err)
	}

	return exists, nil
}

// Create writes the marker for jobID. Writing the same marker twice is a
// no-op.
func (r *PostgresRepository) Create(ctx context.Context, jobID string) error {
	query := `
		INSERT INTO sent_markers (job_id)
		VALUES ($1)
		ON CONFLICT (job_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, jobID); err != nil {
		return dbx.NormalizeError(err)
	}

	return nil
}
