package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/requestid"
)

// RequestID is middleware that tags each request with a correlation ID,
// taken from X-Request-ID or generated. The ID is echoed in the response
// header and stored in the context, where background tasks scheduled by the
// request pick it up for their logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestid.Header)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(requestid.Header, id)
		next.ServeHTTP(w, r.WithContext(requestid.NewContext(r.Context(), id)))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestid.FromContext(ctx)
}
