package jobs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func jobRows(job *models.Job) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "payload", "state", "attempts", "max_attempts",
		"run_at", "locked_until", "last_error", "created_at", "updated_at",
	}).AddRow(job.ID, job.Type, []byte(job.Payload), string(job.State), job.Attempts,
		job.MaxAttempts, job.RunAt, job.LockedUntil, job.LastError, job.CreatedAt, job.UpdatedAt)
}

func waitingJob(id string) *models.Job {
	now := time.Now()
	return &models.Job{
		ID:          id,
		Type:        "verification",
		Payload:     []byte(`{"email":"a@b.c"}`),
		State:       models.JobStateWaiting,
		MaxAttempts: 5,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreate_InsertsAndReadsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	job := waitingJob("j-1")

	insert := `(?s)^\s*INSERT\s+INTO\s+jobs\s*\(id,\s*type,\s*payload,\s*max_attempts,\s*run_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*ON\s+CONFLICT\s*\(id\)\s*DO\s+NOTHING\s*$`
	mock.ExpectExec(insert).
		WithArgs(job.ID, job.Type, []byte(job.Payload), job.MaxAttempts, job.RunAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+jobs\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(job.ID).
		WillReturnRows(jobRows(job))

	got, err := repo.Create(context.Background(), job)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "j-1" || got.State != models.JobStateWaiting {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestCreate_DuplicateIDReturnsExisting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	existing := waitingJob("j-1")
	existing.Attempts = 2
	existing.State = models.JobStateActive

	// conflict: zero rows inserted, the read-back sees the earlier job
	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+jobs\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("j-1").
		WillReturnRows(jobRows(existing))

	got, err := repo.Create(context.Background(), waitingJob("j-1"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.Attempts != 2 || got.State != models.JobStateActive {
		t.Fatalf("expected the existing job back, got %+v", got)
	}
}

func TestClaimNext(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	leased := waitingJob("j-1")
	leased.State = models.JobStateActive
	leased.Attempts = 1
	until := now.Add(time.Minute)
	leased.LockedUntil = &until

	q := `(?s)^\s*UPDATE\s+jobs\s+SET\s+state\s*=\s*'active',\s*attempts\s*=\s*attempts\s*\+\s*1,\s*locked_until\s*=\s*\$2.*FOR\s+UPDATE\s+SKIP\s+LOCKED.*RETURNING`
	mock.ExpectQuery(q).
		WithArgs(now, now.Add(time.Minute)).
		WillReturnRows(jobRows(leased))

	got, err := repo.ClaimNext(context.Background(), now, time.Minute)
	if err != nil {
		t.Fatalf("ClaimNext error: %v", err)
	}
	if got.State != models.JobStateActive || got.Attempts != 1 || got.LockedUntil == nil {
		t.Fatalf("unexpected claimed job: %+v", got)
	}
}

func TestClaimNext_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*UPDATE\s+jobs\s+SET\s+state\s*=\s*'active'`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ClaimNext(context.Background(), time.Now(), time.Minute)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\s+SET\s+state\s*=\s*'completed',\s*locked_until\s*=\s*NULL`).
		WithArgs("j-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkCompleted(context.Background(), "j-1"); err != nil {
		t.Fatalf("MarkCompleted error: %v", err)
	}
}

func TestMarkFailed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\s+SET\s+state\s*=\s*'failed',\s*locked_until\s*=\s*NULL,\s*last_error\s*=\s*\$2`).
		WithArgs("j-1", "smtp: connection refused").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "j-1", "smtp: connection refused"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
}

func TestReschedule(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	runAt := time.Now().Add(10 * time.Second)
	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\s+SET\s+state\s*=\s*'waiting',\s*run_at\s*=\s*\$2,\s*locked_until\s*=\s*NULL,\s*last_error\s*=\s*\$3`).
		WithArgs("j-1", runAt, "timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Reschedule(context.Background(), "j-1", runAt, "timeout"); err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
}

func TestMarkCompleted_JobGone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\s+SET\s+state\s*=\s*'completed'`).
		WithArgs("j-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkCompleted(context.Background(), "j-missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
