package mailer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/parley/internal/mailer"
)

type sentEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag"`
}

func TestSendRecoveryCode(t *testing.T) {
	var received sentEmail
	var gotToken, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer srv.Close()

	c := mailer.NewClient("test-token", "noreply@parley.test", "https://parley.test", mailer.WithBaseURL(srv.URL))
	err := c.SendRecoveryCode(context.Background(), "ada@company.com", "ABCDEFGHIJKLMNOP")

	require.NoError(t, err)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "/email", gotPath)
	assert.Equal(t, "ada@company.com", received.To)
	assert.Equal(t, "noreply@parley.test", received.From)
	assert.Equal(t, "password-recovery", received.Tag)
	assert.Contains(t, received.TextBody, "ABCDEFGHIJKLMNOP")
	assert.Contains(t, received.TextBody, "https://parley.test/reset?token=ABCDEFGHIJKLMNOP")
}

func TestSendRecoveryCode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := mailer.NewClient("test-token", "noreply@parley.test", "https://parley.test", mailer.WithBaseURL(srv.URL))
	err := c.SendRecoveryCode(context.Background(), "ada@company.com", "CODE")

	assert.ErrorContains(t, err, "status 422")
}

func TestSendRecoveryCode_NotConfigured(t *testing.T) {
	c := mailer.NewClient("", "noreply@parley.test", "https://parley.test")

	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.SendRecoveryCode(context.Background(), "ada@company.com", "CODE"), mailer.ErrNotConfigured)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, mailer.LogSender{}.SendRecoveryCode(context.Background(), "ada@company.com", "CODE"))
}
