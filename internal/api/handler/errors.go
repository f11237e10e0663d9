package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/daap14/parley/internal/api/response"
	"github.com/daap14/parley/internal/auth"
	"github.com/daap14/parley/internal/email"
	"github.com/daap14/parley/internal/password"
)

// oracleRetryAfter is advertised when an external check is unavailable.
const oracleRetryAfter = "5"

// writeServiceError maps an auth.Service error to an HTTP response. Internal
// error text never reaches the client.
func writeServiceError(w http.ResponseWriter, err error, requestID string) {
	var weak *password.WeakPasswordError

	switch {
	case errors.As(err, &weak):
		response.Err(w, http.StatusBadRequest, "WEAK_PASSWORD", capitalize(weak.Reason), requestID)
	case errors.Is(err, password.ErrWeakPassword):
		response.Err(w, http.StatusBadRequest, "WEAK_PASSWORD", "Password is too weak", requestID)
	case errors.Is(err, email.ErrDisposableEmail):
		response.Err(w, http.StatusBadRequest, "DISPOSABLE_EMAIL", "Disposable email addresses are not allowed", requestID)
	case errors.Is(err, email.ErrInvalidEmail):
		response.Err(w, http.StatusBadRequest, "INVALID_EMAIL", "Email address is invalid", requestID)
	case errors.Is(err, auth.ErrUserAlreadyExists):
		response.Err(w, http.StatusConflict, "USER_EXISTS", "A user with this email already exists", requestID)
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", requestID)
	case errors.Is(err, auth.ErrUserNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
	case errors.Is(err, auth.ErrNoCredential):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "User has no associated credentials", requestID)
	case errors.Is(err, auth.ErrInvalidResetToken):
		response.Err(w, http.StatusBadRequest, "INVALID_RESET_TOKEN", "Reset token is invalid or already used", requestID)
	case errors.Is(err, email.ErrOracleUnavailable), errors.Is(err, password.ErrOracleUnavailable):
		slog.Warn("dependency unavailable", "error", err, "requestId", requestID)
		w.Header().Set("Retry-After", oracleRetryAfter)
		response.Err(w, http.StatusServiceUnavailable, "DEPENDENCY_FAILURE", "A required service is temporarily unavailable", requestID)
	default:
		slog.Error("request failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
