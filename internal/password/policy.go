package password

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrWeakPassword is returned when a password fails the policy.
var ErrWeakPassword = errors.New("weak password")

// ErrOracleUnavailable is returned when the breach oracle cannot answer.
// Callers must treat it as a failed check.
var ErrOracleUnavailable = errors.New("password breach oracle unavailable")

// WeakPasswordError explains why a password was rejected.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string {
	return "weak password: " + e.Reason
}

// Is makes errors.Is(err, ErrWeakPassword) match.
func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// BreachChecker reports whether a password appears in a breach corpus.
type BreachChecker interface {
	Breached(ctx context.Context, password string) (bool, error)
}

// Policy enforces composition rules and the breach check.
type Policy struct {
	minLength int
	maxLength int
	checker   BreachChecker
}

// NewPolicy creates a Policy. checker must not be nil.
func NewPolicy(minLength, maxLength int, checker BreachChecker) *Policy {
	return &Policy{
		minLength: minLength,
		maxLength: maxLength,
		checker:   checker,
	}
}

// Check returns nil only when password passes every rule and the oracle
// positively reports it as not breached.
func (p *Policy) Check(ctx context.Context, password string) error {
	n := utf8.RuneCountInString(password)
	if n < p.minLength {
		return &WeakPasswordError{Reason: fmt.Sprintf("password must be at least %d characters", p.minLength)}
	}
	if p.maxLength > 0 && n > p.maxLength {
		return &WeakPasswordError{Reason: fmt.Sprintf("password must be at most %d characters", p.maxLength)}
	}

	breached, err := p.checker.Breached(ctx, password)
	if err != nil {
		if errors.Is(err, ErrOracleUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if breached {
		return &WeakPasswordError{Reason: "password is included in a data breach"}
	}

	return nil
}
