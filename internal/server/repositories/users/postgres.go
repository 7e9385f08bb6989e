// Package users provides a PostgreSQL-backed repository for user identity and
// lockout state. All lockout transitions are single atomic statements so that
// concurrent failed logins never lose an increment and the lock fires once.
package users

import (
	"context"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"

	"github.com/avolkovs/authkeeper/internal/dbx"
	"github.com/avolkovs/authkeeper/internal/server/models"
)

// LockoutState is the post-increment view of a user's attempt counter.
type LockoutState struct {
	FailedLoginAttempts int
	LockedAt            *time.Time
}

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. The email must already be normalized (trimmed,
// lowercased) by the caller. A duplicate email yields common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, is_active, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.IsActive, user.RoleID).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, dbx.NormalizeError(err)
	}

	return user, nil
}

const userColumns = `id, email, password_hash, failed_login_attempts, locked_at,
		sessions_invalid_before, is_active, email_verified_at, role_id, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FailedLoginAttempts,
		&user.LockedAt, &user.SessionsInvalidBefore, &user.IsActive,
		&user.EmailVerifiedAt, &user.RoleID, &user.CreatedAt)
	if err != nil {
		return nil, dbx.NormalizeError(err)
	}
	return user, nil
}

// GetByEmail returns the user with the given normalized email.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID returns the user with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// IncrementFailedAttemptsAndMaybeLock advances the failure counter and, when
// the new value reaches maxAttempts and the account is not yet locked, sets
// locked_at and sessions_invalid_before in the same statement. It is a single
// conditional UPDATE, not a read followed by a write: the row lock serializes
// concurrent increments, so N concurrent failures advance the counter by
// exactly N and only the first threshold crosser sets locked_at.
//
// Returns common.ErrorNotFound if the user id does not exist.
func (r *PostgresRepository) IncrementFailedAttemptsAndMaybeLock(ctx context.Context, userID string, maxAttempts int) (*LockoutState, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_at = CASE
		        WHEN failed_login_attempts + 1 >= $2 AND locked_at IS NULL THEN now()
		        ELSE locked_at
		    END,
		    sessions_invalid_before = CASE
		        WHEN failed_login_attempts + 1 >= $2 AND locked_at IS NULL THEN now()
		        ELSE sessions_invalid_before
		    END
		WHERE id = $1
		RETURNING failed_login_attempts, locked_at
	`
	state := &LockoutState{}
	err := r.db.QueryRowContext(ctx, query, userID, maxAttempts).Scan(&state.FailedLoginAttempts, &state.LockedAt)
	if err != nil {
		return nil, dbx.NormalizeError(err)
	}

	return state, nil
}

// ResetFailedAttempts unconditionally zeroes the failure counter. Used only
// on successful authentication, inside the session-issuance transaction.
func (r *PostgresRepository) ResetFailedAttempts(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
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

// SetEmailVerified stamps email_verified_at once. The guard on NULL makes the
// operation idempotent; the bool result reports whether this call was the
// first verification.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, userID string) (bool, error) {
	query := `
		UPDATE users
		SET email_verified_at = now()
		WHERE id = $1 AND email_verified_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, dbx.NormalizeError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, dbx.NormalizeError(err)
	}

	return affected > 0, nil
}

// GetRoleID resolves a role name to its id.
func (r *PostgresRepository) GetRoleID(ctx context.Context, name string) (string, error) {
	query := `
		SELECT id
		FROM roles
		WHERE name = $1
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return "", dbx.NormalizeError(err)
	}

	return id, nil
}
