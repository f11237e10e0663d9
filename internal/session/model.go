package session

import (
	"time"

	"github.com/google/uuid"
)

// Geo is the coarse client location captured at sign-in.
type Geo struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Payload is the server-side data carried by a session. It is stored with
// the session row and never placed in the cookie.
type Payload struct {
	TeamID *uuid.UUID  `json:"teamId"`
	Teams  []uuid.UUID `json:"teams"`
	Geo    Geo         `json:"geo"`
}

// ClientContext describes the client creating a session.
type ClientContext struct {
	IP        string
	UserAgent string
}

// Session represents a row in the sessions table.
type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ExpiresAt      time.Time
	LastActivityAt time.Time
	UserAgent      string
	IPAddress      string
	Payload        Payload
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
