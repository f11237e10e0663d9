package middleware

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/daap14/parley/internal/api/response"
	"github.com/daap14/parley/internal/fingerprint"
	"github.com/daap14/parley/internal/ratelimit"
)

// Allower admits or rejects one request of a route class.
type Allower interface {
	Allow(ctx context.Context, class, fingerprint string) (ratelimit.Decision, error)
}

// RejectionRecorder counts rejected requests.
type RejectionRecorder interface {
	RecordRateLimited(class string)
}

// RateLimit returns middleware that counts each request against the budget
// of class for the client's fingerprint. Over-budget requests get 429 with
// Retry-After. A counter store failure rejects the request with 503.
func RateLimit(limiter Allower, class string, recorder RejectionRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			var userID string
			if identity := GetIdentity(r.Context()); identity != nil {
				userID = identity.User.ID.String()
			}
			fp := fingerprint.FromRequest(r, userID)

			decision, err := limiter.Allow(r.Context(), class, fp)
			if err != nil {
				var exceeded *ratelimit.ExceededError
				if errors.As(err, &exceeded) {
					if recorder != nil {
						recorder.RecordRateLimited(class)
					}
					slog.Warn("rate limit exceeded", "class", class, "requestId", requestID)
					setRetryAfter(w, exceeded.RetryAfter)
					response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", requestID)
					return
				}
				slog.Error("rate limit check failed", "class", class, "error", err, "requestId", requestID)
				setRetryAfter(w, time.Second)
				response.Err(w, http.StatusServiceUnavailable, "DEPENDENCY_FAILURE", "Service temporarily unavailable", requestID)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}
