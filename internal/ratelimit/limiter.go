// Package ratelimit enforces fixed-window request budgets per client
// fingerprint and route class. Counters live in a Store whose increment is
// atomic per key, so concurrent requests from one client are never
// over-admitted.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daap14/parley/internal/clock"
)

// Route classes guarded by the limiter.
const (
	ClassAuth  = "auth"
	ClassWrite = "write"
)

// ErrLimitExceeded is returned when a client exhausted its budget for the window.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// ErrUnknownClass is returned when no rule is configured for a route class.
var ErrUnknownClass = errors.New("unknown rate limit class")

// ExceededError carries the details of a rejected request.
type ExceededError struct {
	Class      string
	Limit      int
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d requests per window, retry after %s", e.Class, e.Limit, e.RetryAfter)
}

// Is makes errors.Is(err, ErrLimitExceeded) match.
func (e *ExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Rule is the budget for one route class.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Store atomically increments the counter for key, starting a new window of
// the given length when none is active. It returns the post-increment count
// and when the current window ends.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Decision describes an admitted request.
type Decision struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and counts requests against per-class rules.
type Limiter struct {
	store Store
	rules map[string]Rule
	clock clock.Clock
}

// NewLimiter creates a Limiter backed by store.
func NewLimiter(store Store, rules map[string]Rule, c clock.Clock) *Limiter {
	return &Limiter{
		store: store,
		rules: rules,
		clock: c,
	}
}

// Allow counts one request for fingerprint in class and reports whether it
// fits the budget. Rejections return an *ExceededError. Store failures are
// returned as-is so callers can fail closed.
func (l *Limiter) Allow(ctx context.Context, class, fingerprint string) (Decision, error) {
	rule, ok := l.rules[class]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}

	count, resetAt, err := l.store.Increment(ctx, Key(class, fingerprint), rule.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("incrementing rate limit counter: %w", err)
	}

	if count > int64(rule.Limit) {
		retryAfter := resetAt.Sub(l.clock.Now())
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{}, &ExceededError{Class: class, Limit: rule.Limit, RetryAfter: retryAfter}
	}

	return Decision{
		Limit:     rule.Limit,
		Remaining: rule.Limit - int(count),
		ResetAt:   resetAt,
	}, nil
}

// Key builds the counter key for a class and fingerprint.
func Key(class, fingerprint string) string {
	return "ratelimit:" + class + ":" + fingerprint
}
