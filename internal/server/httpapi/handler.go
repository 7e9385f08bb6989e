package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/avolkovs/authkeeper/internal/server/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a service error into the wire error envelope. Every
// credential failure, whatever its internal cause, comes out as the same
// UNAUTHORIZED body so callers cannot probe which accounts exist.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "UNAUTHORIZED", Message: "Invalid credentials"}})
	case errors.Is(err, common.ErrorValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "VALIDATION", Message: "Invalid request"}})
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "INVALID_TOKEN", Message: "Invalid or expired token"}})
	case errors.Is(err, common.ErrorConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errorBody{Code: "CONFLICT", Message: "Already exists"}})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{Code: "NOT_FOUND", Message: "Not found"}})
	case errors.Is(err, common.ErrorUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errorBody{Code: "UNAVAILABLE", Message: "Service temporarily unavailable"}})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{Code: "INTERNAL", Message: "Internal server error"}})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "VALIDATION", Message: "Invalid request"}})
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := services.SessionInput{IPAddress: clientIP(r), UserAgent: r.UserAgent()}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password, input)
	if err != nil {
		if !errors.Is(err, common.ErrorUnauthorized) {
			s.logger.Error(r.Context(), "login failed", "error", err)
		}
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.logger.Error(r.Context(), "password reset request failed", "error", err)
		writeError(w, err)
		return
	}

	// Accepted regardless of whether the address is known.
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (s *HTTPServer) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type sessionResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(common.SessionCookieName)
	if err != nil {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	user, err := s.auth.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{UserID: user.ID, Email: user.Email})
}
