package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/logging"
	"github.com/avolkovs/authkeeper/internal/server/models"
	"github.com/avolkovs/authkeeper/internal/server/services"
)

type fakeAuthService struct {
	loginResult *services.LoginResult
	loginErr    error
	resetErr    error
	verifyErr   error
	sessionUser *models.User
	sessionErr  error

	gotEmail    string
	gotPassword string
	gotInput    services.SessionInput
	gotToken    string
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string, input services.SessionInput) (*services.LoginResult, error) {
	f.gotEmail = email
	f.gotPassword = password
	f.gotInput = input
	return f.loginResult, f.loginErr
}

func (f *fakeAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	f.gotToken = token
	return f.sessionUser, f.sessionErr
}

func (f *fakeAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	f.gotEmail = email
	return f.resetErr
}

func (f *fakeAuthService) VerifyEmail(ctx context.Context, token string) error {
	f.gotToken = token
	return f.verifyErr
}

func newTestServer(as AuthService) *HTTPServer {
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	return NewHTTPServer(":0", logger, as)
}

func TestHandleLogin_Success(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	fake := &fakeAuthService{
		loginResult: &services.LoginResult{
			Token:   "aabbcc",
			Session: &models.Session{ID: "s1", UserID: "u1", ExpiresAt: expires},
		},
	}
	srv := newTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"user@example.com","password":"pass"}`))
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	assert.Equal(t, "user@example.com", fake.gotEmail)
	assert.Equal(t, "pass", fake.gotPassword)
	assert.Equal(t, "test-agent", fake.gotInput.UserAgent)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, common.SessionCookieName, c.Name)
	assert.Equal(t, "aabbcc", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.WithinDuration(t, expires, c.Expires, time.Second)
}

func TestHandleLogin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "unauthorized",
			err:        common.ErrorUnauthorized,
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"code":"UNAUTHORIZED","message":"Invalid credentials"}}`,
		},
		{
			name:       "wrapped unauthorized",
			err:        fmt.Errorf("login: %w", common.ErrorUnauthorized),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"code":"UNAUTHORIZED","message":"Invalid credentials"}}`,
		},
		{
			name:       "database down",
			err:        common.ErrorUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"error":{"code":"UNAVAILABLE","message":"Service temporarily unavailable"}}`,
		},
		{
			name:       "unexpected",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":{"code":"INTERNAL","message":"Internal server error"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeAuthService{loginErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
			w := httptest.NewRecorder()

			srv.routes().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.Empty(t, w.Result().Cookies(), "no session cookie on failure")
		})
	}
}

func TestHandleLogin_BadBody(t *testing.T) {
	srv := newTestServer(&fakeAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePasswordResetRequest(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		fake := &fakeAuthService{}
		srv := newTestServer(fake)

		req := httptest.NewRequest(http.MethodPost, "/password-reset/request", strings.NewReader(`{"email":"user@example.com"}`))
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "user@example.com", fake.gotEmail)
	})

	t.Run("store unavailable", func(t *testing.T) {
		srv := newTestServer(&fakeAuthService{resetErr: common.ErrorUnavailable})

		req := httptest.NewRequest(http.MethodPost, "/password-reset/request", strings.NewReader(`{"email":"user@example.com"}`))
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleVerifyEmail(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		fake := &fakeAuthService{}
		srv := newTestServer(fake)

		req := httptest.NewRequest(http.MethodPost, "/verify-email", strings.NewReader(`{"token":"tok"}`))
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tok", fake.gotToken)
	})

	t.Run("expired token", func(t *testing.T) {
		srv := newTestServer(&fakeAuthService{verifyErr: common.ErrTokenExpired})

		req := httptest.NewRequest(http.MethodPost, "/verify-email", strings.NewReader(`{"token":"tok"}`))
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})
}

func TestHandleSession(t *testing.T) {
	t.Run("valid cookie", func(t *testing.T) {
		fake := &fakeAuthService{sessionUser: &models.User{ID: "u-1", Email: "user@example.com"}}
		srv := newTestServer(fake)

		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: "tok"})
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":"u-1","email":"user@example.com"}`, w.Body.String())
		assert.Equal(t, "tok", fake.gotToken)
	})

	t.Run("missing cookie", func(t *testing.T) {
		srv := newTestServer(&fakeAuthService{})

		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		srv := newTestServer(&fakeAuthService{sessionErr: common.ErrorUnauthorized})

		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: "stale"})
		w := httptest.NewRecorder()

		srv.routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})
}

func TestHandlePing(t *testing.T) {
	srv := newTestServer(&fakeAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteError_Conflict(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, fmt.Errorf("creating user: %w", common.ErrorConflict))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"CONFLICT","message":"Already exists"}}`, rec.Body.String())
}
