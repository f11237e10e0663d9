package handler

import (
	"net/http"

	"github.com/daap14/parley/internal/api/middleware"
	"github.com/daap14/parley/internal/api/response"
	"github.com/daap14/parley/internal/session"
	"github.com/daap14/parley/internal/user"
)

type userResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	DisplayName     *string `json:"displayName"`
	Role            string  `json:"role"`
	EmailVerifiedAt *string `json:"emailVerifiedAt"`
	CreatedAt       string  `json:"createdAt"`
}

type sessionResponse struct {
	ID        string      `json:"id"`
	TeamID    *string     `json:"teamId"`
	Teams     []string    `json:"teams"`
	Geo       session.Geo `json:"geo"`
	ExpiresAt string      `json:"expiresAt"`
}

type meResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

func toUserResponse(u *user.User) userResponse {
	resp := userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt.UTC().Format(timeLayout),
	}
	if u.EmailVerifiedAt != nil {
		s := u.EmailVerifiedAt.UTC().Format(timeLayout)
		resp.EmailVerifiedAt = &s
	}
	return resp
}

func toSessionResponse(s *session.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID.String(),
		Teams:     make([]string, 0, len(s.Payload.Teams)),
		Geo:       s.Payload.Geo,
		ExpiresAt: s.ExpiresAt.UTC().Format(timeLayout),
	}
	if s.Payload.TeamID != nil {
		id := s.Payload.TeamID.String()
		resp.TeamID = &id
	}
	for _, id := range s.Payload.Teams {
		resp.Teams = append(resp.Teams, id.String())
	}
	return resp
}

// UserHandler serves endpoints about the signed-in user.
type UserHandler struct{}

// NewUserHandler creates a new UserHandler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me handles GET /me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", requestID)
		return
	}

	response.Success(w, http.StatusOK, meResponse{
		User:    toUserResponse(identity.User),
		Session: toSessionResponse(identity.Session),
	}, requestID)
}

// AdminPing handles GET /admin/ping.
func (h *UserHandler) AdminPing(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	response.Success(w, http.StatusOK, map[string]string{
		"status": "ok",
		"userId": identity.User.ID.String(),
	}, requestID)
}
