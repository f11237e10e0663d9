package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/parley/internal/api/middleware"
	"github.com/daap14/parley/internal/user"
)

func TestRequireRoot(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{"root passes", user.RoleRoot, http.StatusOK},
		{"user is forbidden", user.RoleUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, users, _ := liveSession(tt.role)
			handler := middleware.RequireUser(sessions, users, "")(middleware.RequireRoot()(okHandler()))
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireRoot_WithoutIdentity(t *testing.T) {
	handler := middleware.RequireRoot()(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
