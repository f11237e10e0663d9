package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// disposableErrorCode is the verifier's error code for disposable mailboxes.
const disposableErrorCode = 2

type verifyResponse struct {
	Status bool `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// VerifierClient calls an HTTP email verification API:
// GET {baseURL}/verify/{address}?token={token}.
type VerifierClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	observe    func(time.Duration, error)
}

// VerifierOption configures a VerifierClient.
type VerifierOption func(*VerifierClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) VerifierOption {
	return func(vc *VerifierClient) {
		vc.httpClient = c
	}
}

// WithRateLimit throttles outbound calls to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) VerifierOption {
	return func(vc *VerifierClient) {
		vc.limiter = rate.NewLimiter(r, burst)
	}
}

// WithObserver registers a callback invoked after every lookup.
func WithObserver(fn func(time.Duration, error)) VerifierOption {
	return func(vc *VerifierClient) {
		vc.observe = fn
	}
}

// NewVerifierClient creates a client for the verifier at baseURL.
func NewVerifierClient(baseURL, token string, opts ...VerifierOption) *VerifierClient {
	c := &VerifierClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements Classifier.
func (c *VerifierClient) Classify(ctx context.Context, address string) (class Classification, err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(time.Since(start), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return Undeliverable, fmt.Errorf("%w: waiting for rate limiter: %v", ErrOracleUnavailable, err)
	}

	endpoint := c.baseURL + "/verify/" + url.PathEscape(address)
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Undeliverable, fmt.Errorf("%w: creating request: %v", ErrOracleUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Undeliverable, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Undeliverable, fmt.Errorf("%w: status %d", ErrOracleUnavailable, resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Undeliverable, fmt.Errorf("%w: decoding response: %v", ErrOracleUnavailable, err)
	}

	if body.Status {
		return Deliverable, nil
	}
	if body.Error != nil && (body.Error.Code == disposableErrorCode || strings.Contains(strings.ToLower(body.Error.Message), "disposable")) {
		return Disposable, nil
	}
	return Undeliverable, nil
}
