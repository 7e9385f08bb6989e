package users

import (
	"context"

	"github.com/avolkovs/authkeeper/internal/server/models"
)

// Repository is the credential-store surface consumed by the login
// orchestrator and the account tooling.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	IncrementFailedAttemptsAndMaybeLock(ctx context.Context, userID string, maxAttempts int) (*LockoutState, error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	SetEmailVerified(ctx context.Context, userID string) (bool, error)
	GetRoleID(ctx context.Context, name string) (string, error)
}
