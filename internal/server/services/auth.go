// Package services contains the application services of the credential core:
// the login orchestrator with lockout handling, atomic session issuance, and
// the account flows that feed the transactional email queue.
package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/dbx"
	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/auth"
	"github.com/avolkovs/authkeeper/internal/server/config"
	"github.com/avolkovs/authkeeper/internal/server/mailer"
	"github.com/avolkovs/authkeeper/internal/server/models"
	"github.com/avolkovs/authkeeper/internal/server/queue"
	"github.com/avolkovs/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionInput carries the request metadata recorded on a new session.
type SessionInput struct {
	IPAddress string
	UserAgent string
}

// LoginResult is returned on successful authentication. Token is the raw
// opaque bearer value; it exists only here and in the cookie. The store
// keeps its hash.
type LoginResult struct {
	Token   string
	Session *models.Session
}

// AuthService sequences lookup, lock check, password verification and the
// lockout/session outcome. All atomicity lives in the store primitives; the
// service holds no cross-request state.
type AuthService struct {
	db                  *sql.DB
	repomanager         repomanager.RepositoryManager
	queue               queue.Enqueuer
	logger              logging.Logger
	secretKey           []byte
	sessionValidity     time.Duration
	actionTokenValidity time.Duration
	maxLoginAttempts    int
}

// NewAuthService wires the orchestrator to its store, queue and config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, q queue.Enqueuer, l logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                  db,
		repomanager:         m,
		queue:               q,
		logger:              l.With("module", "auth_service"),
		secretKey:           []byte(cfg.SecretKey),
		sessionValidity:     cfg.SessionValidityDuration,
		actionTokenValidity: cfg.ActionTokenValidityDuration,
		maxLoginAttempts:    cfg.MaxLoginAttempts,
	}
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Every email entering the credential store goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashToken returns the hex-encoded SHA-256 of an opaque bearer token. Only
// this hash is ever persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Login authenticates email+password and issues a session.
//
// Unknown user, wrong password, a locked account and an inactive account all
// resolve to the same common.ErrorUnauthorized so the caller cannot probe
// which accounts exist or are locked. A store outage surfaces as
// common.ErrorUnavailable; a broken precondition (the user vanished between
// lookup and update) as common.ErrorInternal.
func (s *AuthService) Login(ctx context.Context, email, password string, input SessionInput) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		if errors.Is(err, common.ErrorUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: looking up user: %v", common.ErrorInternal, err)
	}

	if user.LockedAt != nil || !user.IsActive {
		// deliberately indistinguishable from bad credentials
		return nil, common.ErrorUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, s.recordFailedAttempt(ctx, user)
	}

	return s.issueSession(ctx, user.ID, input)
}

// recordFailedAttempt advances the lockout counter and always resolves to
// the generic unauthorized outcome; the caller is never told synchronously
// that this attempt crossed the threshold.
func (s *AuthService) recordFailedAttempt(ctx context.Context, user *models.User) error {
	state, err := s.repomanager.Users(s.db).IncrementFailedAttemptsAndMaybeLock(ctx, user.ID, s.maxLoginAttempts)
	if err != nil {
		if errors.Is(err, common.ErrorUnavailable) {
			return err
		}
		// The user existed a moment ago; its disappearance mid-flow is an
		// integrity violation, not a client error.
		return fmt.Errorf("%w: incrementing failed attempts: %v", common.ErrorInternal, err)
	}

	// Exactly one increment observes the counter land on the threshold with
	// the lock set: the one that crossed it.
	if state.LockedAt != nil && state.FailedLoginAttempts == s.maxLoginAttempts {
		s.enqueueAccountLocked(ctx, user, *state.LockedAt)
	}

	return common.ErrorUnauthorized
}

func (s *AuthService) enqueueAccountLocked(ctx context.Context, user *models.User, lockedAt time.Time) {
	_, err := s.queue.Enqueue(ctx, string(mailer.KindAccountLocked), mailer.AccountLockedPayload{
		Email:    user.Email,
		LockedAt: lockedAt,
	}, nil)
	if err != nil {
		// Never let the notification change the login outcome.
		s.logger.Error(ctx, "Failed to enqueue account-locked email",
			"user_id", user.ID, "error", err.Error())
		return
	}
	s.logger.Info(ctx, "Account locked", "user_id", user.ID)
}

// issueSession creates the session row and resets the attempt counter inside
// one transaction: there is no observable state where one happened without
// the other.
func (s *AuthService) issueSession(ctx context.Context, userID string, input SessionInput) (*LoginResult, error) {
	token, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("%w: generating session token: %v", common.ErrorInternal, err)
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: time.Now().Add(s.sessionValidity),
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).ResetFailedAttempts(ctx, userID); err != nil {
			return fmt.Errorf("error resetting failed attempts: %w", err)
		}
		if err := s.repomanager.Sessions(tx).Create(ctx, session); err != nil {
			return fmt.Errorf("error creating session: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: issuing session: %v", common.ErrorInternal, err)
	}

	return &LoginResult{Token: token, Session: session}, nil
}

// ValidateSession resolves an opaque bearer token to its user. It fails with
// common.ErrorUnauthorized for an unknown token, an expired session, a session
// issued before the account's sessions_invalid_before mark (set when the
// account locks), and a locked or inactive account.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	session, err := s.repomanager.Sessions(s.db).FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, common.ErrorUnauthorized
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if user.LockedAt != nil || !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	if user.SessionsInvalidBefore != nil && session.CreatedAt.Before(*user.SessionsInvalidBefore) {
		// issued before the lockout stamped the account
		return nil, common.ErrorUnauthorized
	}

	return user, nil
}

// CreateUser registers a new account and enqueues the verification email.
// A duplicate email yields common.ErrorConflict.
func (s *AuthService) CreateUser(ctx context.Context, email, password, roleName string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", common.ErrorValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %v", common.ErrorInternal, err)
	}

	repo := s.repomanager.Users(s.db)

	roleID, err := repo.GetRoleID(ctx, roleName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, roleName)
		}
		return nil, err
	}

	user, err := repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		RoleID:       roleID,
	})
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateActionToken(user.ID, auth.PurposeVerifyEmail, s.secretKey, s.actionTokenValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: generating verification token: %v", common.ErrorInternal, err)
	}

	if _, err := s.queue.Enqueue(ctx, string(mailer.KindVerification), mailer.VerificationPayload{
		Email: user.Email,
		Token: token,
	}, nil); err != nil {
		// The account exists; the verification email can be re-sent later.
		s.logger.Error(ctx, "Failed to enqueue verification email",
			"user_id", user.ID, "error", err.Error())
	}

	return user, nil
}

// RequestPasswordReset enqueues a password-reset email for a known, active
// account. It succeeds silently for unknown addresses so the endpoint does
// not reveal which emails are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := auth.GenerateActionToken(user.ID, auth.PurposePasswordReset, s.secretKey, s.actionTokenValidity)
	if err != nil {
		return fmt.Errorf("%w: generating reset token: %v", common.ErrorInternal, err)
	}

	if _, err := s.queue.Enqueue(ctx, string(mailer.KindPasswordReset), mailer.PasswordResetPayload{
		Email: user.Email,
		Token: token,
	}, nil); err != nil {
		return err
	}

	return nil
}

// VerifyEmail validates an action token from a verification link and stamps
// the account verified. The first successful verification enqueues the
// welcome email; repeats are no-ops.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := auth.ParseActionToken(token, auth.PurposeVerifyEmail, s.secretKey)
	if err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)

	first, err := repo.SetEmailVerified(ctx, userID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.queue.Enqueue(ctx, string(mailer.KindWelcome), mailer.WelcomePayload{
		Email: user.Email,
	}, nil); err != nil {
		s.logger.Error(ctx, "Failed to enqueue welcome email",
			"user_id", userID, "error", err.Error())
	}

	return nil
}

// InviteUser enqueues an invitation email on behalf of invitedBy.
func (s *AuthService) InviteUser(ctx context.Context, email, invitedBy string) error {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}

	// The invitee has no account yet, so the token carries the invited
	// email as its subject. Redemption validates it with PurposeInvitation.
	token, err := auth.GenerateActionToken(email, auth.PurposeInvitation, s.secretKey, s.actionTokenValidity)
	if err != nil {
		return fmt.Errorf("%w: generating invitation token: %v", common.ErrorInternal, err)
	}

	if _, err := s.queue.Enqueue(ctx, string(mailer.KindInvitation), mailer.InvitationPayload{
		Email:     email,
		InvitedBy: invitedBy,
		Token:     token,
	}, nil); err != nil {
		return err
	}

	return nil
}
