// Package httpapi exposes the authentication operations over HTTP. It owns
// the JSON request/response shapes, the session cookie, and the mapping from
// service errors to status codes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/models"
	"github.com/avolkovs/authkeeper/internal/server/services"
)

// AuthService is the slice of the service layer the handlers need.
type AuthService interface {
	Login(ctx context.Context, email, password string, input services.SessionInput) (*services.LoginResult, error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) error
}

type HTTPServer struct {
	address string
	auth    AuthService
	logger  logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, as AuthService) *HTTPServer {
	return &HTTPServer{
		address: a,
		logger:  l.With("module", "http_server"),
		auth:    as,
	}
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /password-reset/request", s.handlePasswordResetRequest)
	mux.HandleFunc("POST /verify-email", s.handleVerifyEmail)
	mux.HandleFunc("GET /session", s.handleSession)
	mux.HandleFunc("GET /ping", s.handlePing)
	return mux
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
