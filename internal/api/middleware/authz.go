package middleware

import (
	"net/http"

	"github.com/daap14/parley/internal/api/response"
)

// RequireRoot returns middleware that rejects non-root identities with 403.
// It must run after RequireUser.
func RequireRoot() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", requestID)
				return
			}

			if !identity.User.IsRoot() {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Root access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
