package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/daap14/parley/internal/auth"
	"github.com/daap14/parley/internal/session"
	"github.com/daap14/parley/internal/team"
	"github.com/daap14/parley/internal/user"
)

// --- Mock Auth Service ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.RegisterResult, error)
	loginFn    func(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	recoverFn  func(ctx context.Context, in auth.RecoverInput) (*auth.RecoverResult, error)
	resetFn    func(ctx context.Context, in auth.ResetInput) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.RegisterResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return sampleRegisterResult(in.Email), nil
}

func (m *mockAuthService) Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	reg := sampleRegisterResult(in.Email)
	return &auth.LoginResult{User: reg.User, Team: reg.Team, Memberships: []team.Membership{*reg.Membership}}, nil
}

func (m *mockAuthService) Recover(ctx context.Context, in auth.RecoverInput) (*auth.RecoverResult, error) {
	if m.recoverFn != nil {
		return m.recoverFn(ctx, in)
	}
	return &auth.RecoverResult{Token: "ABCDEFGHIJKLMNOP"}, nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, in auth.ResetInput) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, in)
	}
	return nil
}

// --- Mock Session Manager ---

type createCall struct {
	userID  uuid.UUID
	client  session.ClientContext
	payload session.Payload
}

type mockSessions struct {
	createFn      func(ctx context.Context, userID uuid.UUID) error
	destroyFn     func(ctx context.Context) error
	expiredUser   uuid.UUID
	authenticated bool

	created   []createCall
	destroyed int
}

func (m *mockSessions) Create(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, client session.ClientContext, payload session.Payload) (*session.Session, error) {
	if m.createFn != nil {
		if err := m.createFn(ctx, userID); err != nil {
			return nil, err
		}
	}
	m.created = append(m.created, createCall{userID: userID, client: client, payload: payload})
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "token"})
	return &session.Session{ID: uuid.New(), UserID: userID, Payload: payload}, nil
}

func (m *mockSessions) Destroy(ctx context.Context, w http.ResponseWriter, _ *http.Request) error {
	m.destroyed++
	if m.destroyFn != nil {
		return m.destroyFn(ctx)
	}
	return nil
}

func (m *mockSessions) IsAuthenticated(context.Context, http.ResponseWriter, *http.Request) bool {
	return m.authenticated
}

func (m *mockSessions) ExpiredSessionUser(_ *http.Request) (uuid.UUID, bool) {
	return m.expiredUser, m.expiredUser != uuid.Nil
}

// --- Mock User Finder ---

type mockUsers struct {
	getByIDFn func(ctx context.Context, id uuid.UUID) (*user.User, error)
}

func (m *mockUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, user.ErrUserNotFound
}

// --- Helpers ---

func sampleUser(email string) *user.User {
	now := time.Now().UTC()
	return &user.User{
		ID:        uuid.New(),
		Email:     email,
		Role:      user.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleRegisterResult(email string) *auth.RegisterResult {
	now := time.Now().UTC()
	u := sampleUser(email)
	t := &team.Team{ID: uuid.New(), Name: team.PersonalTeamName, CreatedAt: now, UpdatedAt: now}
	m := &team.Membership{ID: uuid.New(), UserID: u.ID, TeamID: t.ID, Role: team.RoleOwner, AcceptedAt: &now, Team: t}
	return &auth.RegisterResult{User: u, Team: t, Membership: m}
}

func makeRequest(method, path string, body any) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(b)))
	default:
		raw, _ := json.Marshal(b)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
	}
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := parseEnvelope(t, w)
	errObj, ok := env["error"].(map[string]interface{})
	require.True(t, ok, "expected an error object")
	return errObj["code"].(string)
}
