// Package gravatar fills in missing user profile data from Gravatar.
package gravatar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrProfileNotFound is returned when Gravatar has no profile for an email.
var ErrProfileNotFound = errors.New("gravatar profile not found")

// DefaultBaseURL is the Gravatar REST API root.
const DefaultBaseURL = "https://api.gravatar.com/v3"

// Profile is the subset of a Gravatar profile the service uses.
type Profile struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ProfileFetcher looks up a public profile by email.
type ProfileFetcher interface {
	Profile(ctx context.Context, email string) (*Profile, error)
}

// Client calls the Gravatar profiles API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL; apiKey
// may be empty for anonymous, lower-rate access.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hash returns the Gravatar identifier for email.
func Hash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Profile implements ProfileFetcher.
func (c *Client) Profile(ctx context.Context, email string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/profiles/"+Hash(email), nil)
	if err != nil {
		return nil, fmt.Errorf("creating gravatar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting gravatar profile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gravatar returned status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding gravatar profile: %w", err)
	}
	return &p, nil
}
