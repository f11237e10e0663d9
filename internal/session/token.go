package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/daap14/parley/internal/clock"
)

var errInvalidToken = errors.New("invalid session token")

// sessionClaims carries only the session reference and its validity window.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// signer issues and verifies HS256 tokens bound to the injected clock.
type signer struct {
	secret []byte
	clock  clock.Clock
}

func (s *signer) sign(claims jwt.Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

func (s *signer) parse(raw string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errInvalidToken
	}
	return nil
}

func (s *signer) sessionToken(id uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	return s.sign(sessionClaims{
		SessionID: id.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// sessionID extracts the session reference from raw. Tokens past their
// exp are still decoded so the caller can expire the row they point at;
// the returned error then wraps jwt.ErrTokenExpired.
func (s *signer) sessionID(raw string) (uuid.UUID, error) {
	var claims sessionClaims
	err := s.parse(raw, &claims)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return uuid.Nil, err
	}

	id, parseErr := uuid.Parse(claims.SessionID)
	if parseErr != nil {
		return uuid.Nil, errInvalidToken
	}
	return id, err
}

func (s *signer) expiredSessionToken(userID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	return s.sign(jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
}

func (s *signer) expiredSessionUser(raw string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	if err := s.parse(raw, &claims); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.Subject)
}
