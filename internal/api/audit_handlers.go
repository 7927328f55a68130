package api

import (
	"net/http"
	"time"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditHandler serves the read side of the audit trail.
type AuditHandler struct {
	pool *pgxpool.Pool
}

func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

type auditLogResponse struct {
	ID           string         `json:"id"`
	UserID       *string        `json:"user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func toAuditLogResponse(entry *domain.AuditLog) auditLogResponse {
	out := auditLogResponse{
		ID:           entry.ID.String(),
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		Metadata:     entry.Metadata,
		CreatedAt:    entry.CreatedAt,
	}
	if entry.UserID != nil {
		s := entry.UserID.String()
		out.UserID = &s
	}
	if entry.ResourceID != nil {
		s := entry.ResourceID.String()
		out.ResourceID = &s
	}
	return out
}

// List pages the organization's audit trail, newest first, optionally bounded
// by a "since" timestamp (RFC 3339, default 30 days back).
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, err := tenant.Require(r.Context())
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	since := time.Now().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			helpers.RespondError(w, r, domain.E(domain.CodeValidationError, "since must be RFC 3339"))
			return
		}
		since = parsed
	}
	_, limit := pagination(r)

	var entries []*domain.AuditLog
	err = storage.WithTenant(r.Context(), h.pool, tc, func(uow *storage.UnitOfWork) error {
		entries, err = uow.AuditLogs().ListByOrganization(r.Context(), tc.TenantID, since, limit)
		return err
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]auditLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toAuditLogResponse(entry))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"audit_logs": out})
}
