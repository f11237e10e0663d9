package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/daap14/parley/internal/api/response"
)

// Recovery is middleware that recovers from panics and returns a 500 error.
// The log entry names the route and, behind RequireUser, the signed-in user.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			requestID := GetRequestID(r.Context())
			attrs := []any{
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"requestId", requestID,
				"stack", string(debug.Stack()),
			}
			if identity := GetIdentity(r.Context()); identity != nil {
				attrs = append(attrs, "userId", identity.User.ID)
			}
			slog.Error("panic recovered", attrs...)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
		}()
		next.ServeHTTP(w, r)
	})
}
