package audit

import (
	"time"

	"github.com/google/uuid"
)

// Recorded actions.
const (
	ActionUserRegister         = "user_register"
	ActionAcceptsMembership    = "accepts_membership"
	ActionUserLogin            = "user_login"
	ActionGenerateRecoveryCode = "generate_recovery_code"
	ActionResetPassword        = "reset_password"
	ActionUserLogout           = "user_logout"
)

// Entry represents a row in the audit_logs table.
type Entry struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	Action    string
	Auditable *string // "<kind>:<id>"
	Payload   map[string]any
	CreatedAt time.Time
}

// Ref formats an entity reference for Entry.Auditable.
func Ref(kind string, id uuid.UUID) *string {
	ref := kind + ":" + id.String()
	return &ref
}
