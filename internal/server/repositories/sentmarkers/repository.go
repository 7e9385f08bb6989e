package sentmarkers

import "context"

// Repository is the idempotency-marker store: one row per job whose external
// side effect has been confirmed.
type Repository interface {
	Exists(ctx context.Context, jobID string) (bool, error)
	Create(ctx context.Context, jobID string) error
}
