package password

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// PwnedClient queries the Have I Been Pwned range API. Only the first five
// hex characters of the password's SHA-1 leave the process.
type PwnedClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	observe    func(time.Duration, error)
}

// PwnedOption configures a PwnedClient.
type PwnedOption func(*PwnedClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) PwnedOption {
	return func(pc *PwnedClient) {
		pc.httpClient = c
	}
}

// WithRateLimit throttles outbound calls to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) PwnedOption {
	return func(pc *PwnedClient) {
		pc.limiter = rate.NewLimiter(r, burst)
	}
}

// WithObserver registers a callback invoked after every lookup.
func WithObserver(fn func(time.Duration, error)) PwnedOption {
	return func(pc *PwnedClient) {
		pc.observe = fn
	}
}

// NewPwnedClient creates a client for the range API at baseURL
// (e.g. https://api.pwnedpasswords.com).
func NewPwnedClient(baseURL string, opts ...PwnedOption) *PwnedClient {
	c := &PwnedClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breached implements BreachChecker. Any transport or protocol failure is
// reported as ErrOracleUnavailable.
func (c *PwnedClient) Breached(ctx context.Context, password string) (breached bool, err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(time.Since(start), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: waiting for rate limiter: %v", ErrOracleUnavailable, err)
	}

	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("%w: creating request: %v", ErrOracleUnavailable, err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", "parley-identity")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: status %d", ErrOracleUnavailable, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hashSuffix, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return false, fmt.Errorf("%w: malformed count %q", ErrOracleUnavailable, countStr)
		}
		// Padding entries carry a zero count.
		return count > 0, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: reading response: %v", ErrOracleUnavailable, err)
	}

	return false, nil
}
