package sessions

import (
	"context"

	"github.com/avolkovs/authkeeper/internal/server/models"
)

// Repository persists opaque-token sessions.
type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
