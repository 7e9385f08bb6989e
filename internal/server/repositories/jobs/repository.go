package jobs

import (
	"context"
	"time"

	"github.com/avolkovs/authkeeper/internal/server/models"
)

// Repository is the durable queue storage. Claimed jobs are leased: a job
// whose lease expires without an acknowledgment becomes claimable again,
// which is what makes delivery at-least-once.
type Repository interface {
	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	ClaimNext(ctx context.Context, now time.Time, leaseTTL time.Duration) (*models.Job, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, lastError string) error
}
