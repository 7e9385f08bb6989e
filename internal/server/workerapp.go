package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/config"
	"github.com/avolkovs/authkeeper/internal/server/mailer"
	"github.com/avolkovs/authkeeper/internal/server/queue"
	"github.com/avolkovs/authkeeper/internal/server/repositories/repomanager"
)

// WorkerApp runs the background job worker: it claims queued jobs and hands
// them to the email dispatcher. It shares the database schema with the main
// app but runs as a separate process.
type WorkerApp struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	worker *queue.Worker
}

func NewWorkerApp(ctx context.Context, cfg *config.Config) (*WorkerApp, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	transport := mailer.NewSMTPTransport(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword)
	dispatcher := mailer.NewDispatcher(db, m, transport, logger, cfg.EmailFrom, cfg.BaseURL)

	worker := queue.NewWorker(db, m, dispatcher, logger, queue.WorkerConfig{
		PollInterval:     cfg.WorkerPollInterval,
		LeaseTTL:         cfg.WorkerLeaseTTL,
		RetryBackoffBase: cfg.RetryBackoffBase,
		RetryBackoffCap:  cfg.RetryBackoffCap,
	})

	return &WorkerApp{config: cfg, logger: logger, db: db, worker: worker}, nil
}

func (app *WorkerApp) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting worker...")

	initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.worker.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
