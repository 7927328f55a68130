// Package audit records security-relevant actions to an append-only trail.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service defines the interface for recording security events. Implementations
// are best-effort: recording must never fail the business operation.
type Service interface {
	Log(ctx context.Context, action domain.AuditAction, params LogParams)
}

// LogParams encapsulates the optional fields of an audit record.
type LogParams struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	ResourceType   string
	ResourceID     uuid.UUID
	IPAddress      string
	UserAgent      string
	Metadata       map[string]any
}

// DBLogger implements Service against identity.audit_logs. Each record is
// written in its own short transaction so the trail survives a rollback of
// the operation being audited.
type DBLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDBLogger(pool *pgxpool.Pool, logger *slog.Logger) *DBLogger {
	return &DBLogger{pool: pool, logger: logger.With("component", "audit")}
}

// Log records an event. On database failure the record is written to the
// structured log instead, so the event is never silently lost.
func (s *DBLogger) Log(ctx context.Context, action domain.AuditAction, params LogParams) {
	entry := &domain.AuditLog{
		ID:             uuid.New(),
		OrganizationID: optionalID(params.OrganizationID),
		UserID:         optionalID(params.UserID),
		Action:         action,
		ResourceType:   params.ResourceType,
		ResourceID:     optionalID(params.ResourceID),
		IPAddress:      params.IPAddress,
		UserAgent:      params.UserAgent,
		Metadata:       params.Metadata,
		CreatedAt:      time.Now().UTC(),
	}

	err := storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		return uow.AuditLogs().Append(ctx, entry)
	})
	if err != nil {
		s.logger.Error("audit insert failed, falling back to log",
			"action", string(action),
			"organization_id", params.OrganizationID,
			"user_id", params.UserID,
			"error", err)
	}
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// NopLogger discards all records; test helper.
type NopLogger struct{}

func (NopLogger) Log(context.Context, domain.AuditAction, LogParams) {}
