// Package sessions provides a PostgreSQL-backed repository for bearer-token
// sessions. Only the one-way hash of the token is ever stored.
package sessions

import (
	"context"

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

// Create inserts a new session row.
func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.ID, session.UserID, session.TokenHash,
		session.ExpiresAt, session.IPAddress, session.UserAgent).Scan(&session.CreatedAt)
	if err != nil {
		return dbx.NormalizeError(err)
	}

	return nil
}

// FindByTokenHash returns the session for the given token hash.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, ip_address, user_agent, created_at
		FROM sessions
		WHERE token_hash = $1
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.TokenHash,
		&session.ExpiresAt, &session.IPAddress, &session.UserAgent, &session.CreatedAt)
	if err != nil {
		return nil, dbx.NormalizeError(err)
	}

	return session, nil
}

// DeleteExpired removes sessions whose expiry has passed and reports how many
// rows were deleted.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= now()
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, dbx.NormalizeError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.NormalizeError(err)
	}

	return affected, nil
}
