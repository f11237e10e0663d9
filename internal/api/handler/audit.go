package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daap14/parley/internal/api/middleware"
	"github.com/daap14/parley/internal/api/response"
	"github.com/daap14/parley/internal/audit"
)

// AuditReader reads a user's audit trail.
type AuditReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]audit.Entry, error)
}

type auditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Auditable *string        `json:"auditable"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"createdAt"`
}

// AuditHandler serves the audit trail to root users.
type AuditHandler struct {
	log AuditReader
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(log AuditReader) *AuditHandler {
	return &AuditHandler{log: log}
}

// ListByUser handles GET /admin/users/{userID}/audit.
func (h *AuditHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "userID must be a valid UUID", requestID)
		return
	}

	entries, err := h.log.ListByUser(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list audit entries", "error", err, "userId", userID, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		payload := e.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		items = append(items, auditEntryResponse{
			ID:        e.ID.String(),
			Action:    e.Action,
			Auditable: e.Auditable,
			Payload:   payload,
			CreatedAt: e.CreatedAt.UTC().Format(timeLayout),
		})
	}

	response.Success(w, http.StatusOK, items, requestID)
}
