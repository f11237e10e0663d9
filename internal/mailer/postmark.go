// Package mailer delivers transactional email through Postmark.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Postmark API root.
const DefaultBaseURL = "https://api.postmarkapp.com"

// ErrNotConfigured is returned when no server token is set.
var ErrNotConfigured = errors.New("mailer not configured: missing server token")

// Client sends email through the Postmark API.
type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	appURL      string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the Postmark API root.
func WithBaseURL(u string) Option {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(u, "/")
	}
}

// NewClient creates a Client. appURL is used to build links in messages.
func NewClient(serverToken, fromEmail, appURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     DefaultBaseURL,
		appURL:      strings.TrimRight(appURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendRecoveryCode emails a password recovery code to toEmail.
func (c *Client) SendRecoveryCode(ctx context.Context, toEmail, code string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	link := fmt.Sprintf("%s/reset?token=%s", c.appURL, code)
	textBody := fmt.Sprintf("Your recovery code is %s\n\nEnter it at %s to choose a new password.\nIf you did not ask for this, ignore this email.", code, link)
	htmlBody := fmt.Sprintf(
		`<p>Your recovery code is <strong>%s</strong></p><p><a href="%s">Choose a new password</a></p><p>If you did not ask for this, ignore this email.</p>`,
		code, link,
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Your password recovery code",
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "password-recovery",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

// LogSender logs recovery codes instead of sending them. It is used when
// Postmark is not configured.
type LogSender struct{}

// SendRecoveryCode logs that a code was issued. The code itself is logged
// only at debug level.
func (LogSender) SendRecoveryCode(_ context.Context, toEmail, code string) error {
	slog.Info("recovery code issued; email delivery not configured", "to", toEmail)
	slog.Debug("recovery code", "to", toEmail, "code", code)
	return nil
}
