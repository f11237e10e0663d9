// Package email validates addresses: a local syntax check followed by a
// deliverability/disposable classification from an external oracle.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalidEmail is returned for malformed or undeliverable addresses.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrDisposableEmail is returned for disposable mailbox providers.
var ErrDisposableEmail = errors.New("disposable email address")

// ErrOracleUnavailable is returned when the classification oracle cannot
// answer. Callers must treat it as a failed check.
var ErrOracleUnavailable = errors.New("email verification oracle unavailable")

const maxAddressLength = 254

// Classification is the oracle's verdict on an address.
type Classification int

const (
	Deliverable Classification = iota
	Disposable
	Undeliverable
)

// Classifier asks an external service about an address.
type Classifier interface {
	Classify(ctx context.Context, address string) (Classification, error)
}

// Validator combines the syntax check with a Classifier.
type Validator struct {
	classifier Classifier
}

// NewValidator creates a Validator. classifier must not be nil.
func NewValidator(classifier Classifier) *Validator {
	return &Validator{classifier: classifier}
}

// Normalize trims surrounding whitespace and lower-cases the address.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// CheckSyntax validates the address locally without calling the oracle.
func CheckSyntax(address string) error {
	if address == "" || len(address) > maxAddressLength {
		return ErrInvalidEmail
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return ErrInvalidEmail
	}

	at := strings.LastIndexByte(address, '@')
	domain := address[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrInvalidEmail
	}

	return nil
}

// Verify returns nil only when the address is well-formed and the oracle
// positively classifies it as deliverable.
func (v *Validator) Verify(ctx context.Context, address string) error {
	if err := CheckSyntax(address); err != nil {
		return err
	}

	class, err := v.classifier.Classify(ctx, address)
	if err != nil {
		if errors.Is(err, ErrOracleUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	switch class {
	case Deliverable:
		return nil
	case Disposable:
		return ErrDisposableEmail
	default:
		return ErrInvalidEmail
	}
}
