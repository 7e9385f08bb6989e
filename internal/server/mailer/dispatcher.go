package mailer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/models"
	"github.com/avolkovs/authkeeper/internal/server/queue"
	"github.com/avolkovs/authkeeper/internal/server/repositories/repomanager"
)

// Dispatcher consumes email jobs from the queue and performs an idempotent
// external send per job id.
type Dispatcher struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	transport   Transport
	logger      logging.Logger
	from        string
	baseURL     string
}

// NewDispatcher constructs a dispatcher sending from the given address, with
// action links rooted at baseURL.
func NewDispatcher(db *sql.DB, m repomanager.RepositoryManager, t Transport, l logging.Logger, from, baseURL string) *Dispatcher {
	return &Dispatcher{
		db:          db,
		repomanager: m,
		transport:   t,
		logger:      l.With("module", "mailer"),
		from:        from,
		baseURL:     baseURL,
	}
}

// Handle processes one delivered job:
//
//  1. If a sent marker exists for the job id, the send already happened on an
//     earlier delivery; acknowledge without touching the transport.
//  2. Render the type-specific template. An unknown type or a malformed
//     payload is a fatal error: the job is retired, never silently dropped.
//  3. Call the transport. Transport failures propagate so the queue's
//     backoff policy governs the retry.
//  4. Write the sent marker. If the write fails, log and acknowledge anyway:
//     a later redelivery may duplicate the send, but a send is never lost.
func (d *Dispatcher) Handle(ctx context.Context, job *models.Job) error {
	markers := d.repomanager.SentMarkers(d.db)

	sent, err := markers.Exists(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("error checking sent marker: %w", err)
	}
	if sent {
		d.logger.Info(ctx, "Skipping already-sent job", "job_id", job.ID)
		return nil
	}

	msg, err := Render(Kind(job.Type), job.Payload, d.baseURL)
	if err != nil {
		var unknown *UnknownKindError
		if errors.As(err, &unknown) || errors.Is(err, common.ErrorValidation) {
			return queue.Fatal(err)
		}
		return err
	}
	msg.From = d.from

	if err := d.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}

	if err := markers.Create(ctx, job.ID); err != nil {
		// The send itself succeeded. Accept a possible duplicate on
		// redelivery instead of failing the job.
		d.logger.Warn(ctx, "Sent marker write failed after successful send",
			"job_id", job.ID, "error", err.Error())
	}

	return nil
}
