package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/api/middleware"
	"github.com/daap14/parley/internal/api/response"
	"github.com/daap14/parley/internal/api/validation"
	"github.com/daap14/parley/internal/auth"
	"github.com/daap14/parley/internal/fingerprint"
	"github.com/daap14/parley/internal/session"
	"github.com/daap14/parley/internal/team"
	"github.com/daap14/parley/internal/user"
)

// AuthService is the subset of auth.Service used by the handler.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.RegisterResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Recover(ctx context.Context, in auth.RecoverInput) (*auth.RecoverResult, error)
	ResetPassword(ctx context.Context, in auth.ResetInput) error
}

// SessionManager creates, inspects and destroys the session cookie.
type SessionManager interface {
	Create(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, client session.ClientContext, payload session.Payload) (*session.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	ExpiredSessionUser(r *http.Request) (uuid.UUID, bool)
	IsAuthenticated(ctx context.Context, w http.ResponseWriter, r *http.Request) bool
}

type registerRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName *string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type registerResponse struct {
	User       userResponse       `json:"user"`
	Team       *teamResponse      `json:"team"`
	Membership membershipResponse `json:"membership"`
}

type loginResponse struct {
	User        userResponse         `json:"user"`
	Team        *teamResponse        `json:"team"`
	Memberships []membershipResponse `json:"memberships"`
	ReturnTo    *string              `json:"returnTo"`
}

type loginFormResponse struct {
	DefaultEmail *string `json:"defaultEmail"`
}

type statusResponse struct {
	Authenticated bool `json:"authenticated"`
}

type recoverResponse struct {
	Message string `json:"message"`
}

// AuthHandler handles the /auth endpoints.
type AuthHandler struct {
	svc      AuthService
	sessions SessionManager
	users    middleware.UserFinder
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthService, sessions SessionManager, users middleware.UserFinder) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		sessions: sessions,
		users:    users,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateRegisterRequest(validation.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	res, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	payload := session.Payload{
		TeamID: &res.Team.ID,
		Teams:  []uuid.UUID{res.Team.ID},
		Geo:    geoFromRequest(r),
	}
	if _, err := h.sessions.Create(r.Context(), w, res.User.ID, clientFromRequest(r), payload); err != nil {
		// The account exists at this point; the client can sign in normally.
		slog.Error("failed to create session after registration", "error", err, "userId", res.User.ID, "requestId", requestID)
	}

	memberships := toMembershipResponses([]team.Membership{*res.Membership})
	response.Success(w, http.StatusCreated, registerResponse{
		User:       toUserResponse(res.User),
		Team:       toTeamResponse(res.Team),
		Membership: memberships[0],
	}, requestID)
}

// LoginForm handles GET /auth/login. It offers the email of the account
// whose session expired on this client.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var data loginFormResponse
	if userID, ok := h.sessions.ExpiredSessionUser(r); ok {
		u, err := h.users.GetByID(r.Context(), userID)
		switch {
		case err == nil:
			data.DefaultEmail = &u.Email
		case !errors.Is(err, user.ErrUserNotFound):
			slog.Warn("failed to load user for expired session", "error", err, "requestId", requestID)
		}
	}

	response.Success(w, http.StatusOK, data, requestID)
}

// Status handles GET /auth/status. It never fails: an unreadable session
// counts as signed out.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	authenticated := h.sessions.IsAuthenticated(r.Context(), w, r)
	response.Success(w, http.StatusOK, statusResponse{Authenticated: authenticated}, requestID)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if fieldErrors := validation.ValidateLoginRequest(req.Email, req.Password); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	res, err := h.svc.Login(r.Context(), auth.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	payload := session.Payload{
		Teams: make([]uuid.UUID, 0, len(res.Memberships)),
		Geo:   geoFromRequest(r),
	}
	if res.Team != nil {
		payload.TeamID = &res.Team.ID
	}
	for _, m := range res.Memberships {
		payload.Teams = append(payload.Teams, m.TeamID)
	}

	if _, err := h.sessions.Create(r.Context(), w, res.User.ID, clientFromRequest(r), payload); err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, loginResponse{
		User:        toUserResponse(res.User),
		Team:        toTeamResponse(res.Team),
		Memberships: toMembershipResponses(res.Memberships),
		ReturnTo:    consumeReturnTo(w, r),
	}, requestID)
}

// Recover handles POST /auth/recover. The recovery code is delivered out of
// band and never appears in the response.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req recoverRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if fieldErrors := validation.ValidateRecoverRequest(req.Email); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	if _, err := h.svc.Recover(r.Context(), auth.RecoverInput{Email: req.Email}); err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusAccepted, recoverResponse{Message: "A recovery code has been sent"}, requestID)
}

// Reset handles POST /auth/reset.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req resetRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if fieldErrors := validation.ValidateResetRequest(req.Token, req.Password); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), auth.ResetInput{Token: req.Token, Password: req.Password}); err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	response.NoContent(w)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	response.NoContent(w)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func clientFromRequest(r *http.Request) session.ClientContext {
	return session.ClientContext{
		IP:        fingerprint.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// geoFromRequest reads the location headers set by Cloudflare.
func geoFromRequest(r *http.Request) session.Geo {
	return session.Geo{
		City:    r.Header.Get("CF-IPCity"),
		Country: r.Header.Get("CF-IPCountry"),
	}
}

// consumeReturnTo returns the local path remembered by RequireUser and
// clears the cookie. Absolute and protocol-relative URLs are ignored.
func consumeReturnTo(w http.ResponseWriter, r *http.Request) *string {
	cookie, err := r.Cookie(middleware.ReturnToCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ReturnToCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	target := cookie.Value
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return nil
	}
	return &target
}
