package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/models"
	"github.com/avolkovs/authkeeper/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// Handler processes one delivered job. It may be invoked more than once for
// the same job id across redeliveries.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *models.Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job *models.Job) error {
	return f(ctx, job)
}

// WorkerConfig controls the polling loop and retry policy.
type WorkerConfig struct {
	PollInterval     time.Duration
	LeaseTTL         time.Duration
	RetryBackoffBase time.Duration
	RetryBackoffCap  time.Duration
}

// Worker is the consumer half of the queue: a single-goroutine poll loop
// that leases one job at a time and acknowledges, reschedules or retires it
// based on the handler outcome.
type Worker struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	handler     Handler
	logger      logging.Logger
	config      WorkerConfig
}

// NewWorker constructs a worker bound to the given database handle.
func NewWorker(db *sql.DB, m repomanager.RepositoryManager, h Handler, l logging.Logger, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = 5 * time.Second
	}
	if cfg.RetryBackoffCap <= 0 {
		cfg.RetryBackoffCap = 10 * time.Minute
	}
	return &Worker{
		db:          db,
		repomanager: m,
		handler:     h,
		logger:      l.With("module", "queue_worker"),
		config:      cfg,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info(ctx, "Starting queue worker",
		"poll_interval", w.config.PollInterval.String(),
		"lease_ttl", w.config.LeaseTTL.String())

	for {
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.logger.Error(ctx, "Queue iteration failed", "error", err.Error())
		}

		if processed && err == nil {
			// drain the backlog without sleeping
			select {
			case <-ctx.Done():
				w.logger.Info(ctx, "Stopping queue worker...")
				return nil
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Stopping queue worker...")
			return nil
		case <-time.After(w.config.PollInterval):
		}
	}
}

// ProcessOne claims and processes at most one job. The bool result reports
// whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	repo := w.repomanager.Jobs(w.db)

	job, err := repo.ClaimNext(ctx, time.Now(), w.config.LeaseTTL)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			w.logger.Debug(ctx, "No runnable jobs")
			return false, nil
		}
		return false, err
	}

	log := w.logger.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempts)

	handlerCtx, cancel := context.WithTimeout(ctx, w.config.LeaseTTL)
	handleErr := w.handler.Handle(handlerCtx, job)
	cancel()

	if handleErr == nil {
		if err := repo.MarkCompleted(ctx, job.ID); err != nil {
			// Lease expiry will redeliver; the handler must be idempotent
			// for exactly this reason.
			return true, err
		}
		log.Info(ctx, "Job completed")
		return true, nil
	}

	if IsFatal(handleErr) {
		if err := repo.MarkFailed(ctx, job.ID, handleErr.Error()); err != nil {
			return true, err
		}
		log.Error(ctx, "Job failed permanently", "error", handleErr.Error())
		return true, nil
	}

	if job.Attempts >= job.MaxAttempts {
		if err := repo.MarkFailed(ctx, job.ID, handleErr.Error()); err != nil {
			return true, err
		}
		log.Error(ctx, "Job failed, attempts exhausted", "error", handleErr.Error())
		return true, nil
	}

	delay := w.backoffDelay(job.Attempts)
	if err := repo.Reschedule(ctx, job.ID, time.Now().Add(delay), handleErr.Error()); err != nil {
		return true, err
	}
	log.Warn(ctx, "Job rescheduled", "error", handleErr.Error(), "delay", delay.String())
	return true, nil
}

// backoffDelay returns the bounded exponential delay before the next
// delivery of a job that has already been attempted `attempt` times.
func (w *Worker) backoffDelay(attempt int) time.Duration {
	b := retry.WithCappedDuration(w.config.RetryBackoffCap, retry.NewExponential(w.config.RetryBackoffBase))

	delay := w.config.RetryBackoffBase
	for i := 0; i < attempt; i++ {
		next, stopped := b.Next()
		if stopped {
			break
		}
		delay = next
	}
	return delay
}
