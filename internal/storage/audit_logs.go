package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// AuditLogRepo appends to identity.audit_logs. The table is append-only:
// there is no update or delete path, and retention is handled by partition
// aging outside the application.
type AuditLogRepo struct {
	uow *UnitOfWork
}

// AuditLogs returns the repository bound to this unit of work.
func (u *UnitOfWork) AuditLogs() *AuditLogRepo {
	return &AuditLogRepo{uow: u}
}

// Append inserts one immutable record.
func (r *AuditLogRepo) Append(ctx context.Context, entry *domain.AuditLog) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}
	var ip any
	if entry.IPAddress != "" {
		ip = entry.IPAddress
	}
	_, err = r.uow.Tx().Exec(ctx, `
		INSERT INTO identity.audit_logs
			(id, organization_id, user_id, action, resource_type, resource_id,
			 ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.OrganizationID, entry.UserID, string(entry.Action), entry.ResourceType,
		entry.ResourceID, ip, entry.UserAgent, metadata, entry.CreatedAt)
	return mapError(err)
}

// ListByOrganization scans the audit trail newest-first. The raw query keeps
// the (organization_id, created_at DESC) index and partition pruning in play.
func (r *AuditLogRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, since time.Time, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.uow.Tx().Query(ctx, `
		SELECT id, organization_id, user_id, action, resource_type, resource_id,
		       ip_address, user_agent, metadata, created_at
		FROM identity.audit_logs
		WHERE organization_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, orgID, since, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var (
			entry    domain.AuditLog
			action   string
			ip       *string
			metadata []byte
		)
		err := rows.Scan(
			&entry.ID, &entry.OrganizationID, &entry.UserID, &action, &entry.ResourceType,
			&entry.ResourceID, &ip, &entry.UserAgent, &metadata, &entry.CreatedAt,
		)
		if err != nil {
			return nil, mapError(err)
		}
		entry.Action = domain.AuditAction(action)
		if ip != nil {
			entry.IPAddress = *ip
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &entry.Metadata)
		}
		out = append(out, &entry)
	}
	return out, mapError(rows.Err())
}
