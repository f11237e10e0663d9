package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/api/response"
	"github.com/daap14/parley/internal/session"
	"github.com/daap14/parley/internal/user"
)

type contextKey string

const identityKey contextKey = "identity"

// ReturnToCookie remembers the URL a signed-out client asked for before it
// was redirected to sign in.
const ReturnToCookie = "return_to"

// SessionReader resolves the session attached to a request.
type SessionReader interface {
	Get(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Session, error)
	Query(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

// UserFinder loads the user owning a session.
type UserFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Identity is the authenticated caller of a request.
type Identity struct {
	User    *user.User
	Session *session.Session
}

// RequireUser is middleware that only lets requests with a live session
// through. When returnTo is set and the client asks for HTML, it stores the
// requested URL in a cookie and redirects to returnTo. Otherwise it answers
// 401.
func RequireUser(sessions SessionReader, users UserFinder, returnTo string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity, err := authenticate(r.Context(), w, r, sessions, users)
			if err != nil {
				if !errors.Is(err, session.ErrUnauthenticated) {
					slog.Error("failed to authenticate request", "error", err, "requestId", requestID)
					response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
					return
				}
				if returnTo != "" && wantsHTML(r) {
					http.SetCookie(w, &http.Cookie{
						Name:     ReturnToCookie,
						Value:    r.URL.RequestURI(),
						Path:     "/",
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
					})
					http.Redirect(w, r, returnTo, http.StatusSeeOther)
					return
				}
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnonymous is middleware that redirects clients that already hold
// a live session to redirectTo.
func RequireAnonymous(sessions SessionReader, redirectTo string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.Query(r.Context(), w, r)
			if err != nil {
				requestID := GetRequestID(r.Context())
				slog.Error("failed to query session", "error", err, "requestId", requestID)
				response.Err(w, http.StatusServiceUnavailable, "DEPENDENCY_FAILURE", "Session store unavailable", requestID)
				return
			}
			if s != nil {
				http.Redirect(w, r, redirectTo, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey).(*Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, sessions SessionReader, users UserFinder) (*Identity, error) {
	s, err := sessions.Get(ctx, w, r)
	if err != nil {
		return nil, err
	}

	u, err := users.GetByID(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, session.ErrUnauthenticated
		}
		return nil, err
	}

	return &Identity{User: u, Session: s}, nil
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
