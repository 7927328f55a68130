package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/outbox"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventSource is implemented by aggregate roots that collect domain events.
type EventSource interface {
	DrainEvents() []domain.Event
}

// UnitOfWork owns exactly one transaction. It applies tenant isolation on
// entry, tracks mutated aggregates, and drains their events into the outbox
// inside the same transaction at commit. Not safe for concurrent use: the
// underlying session handles one statement at a time.
type UnitOfWork struct {
	tx        pgx.Tx
	tenantCtx *tenant.Context
	tracked   []EventSource
	committed bool
}

// Begin opens a system transaction: row policies are bypassed via an explicit
// transaction-local setting, never by the absence of one. Only admin-scoped
// flows and cross-tenant lookups (user-by-email during login) may use it
// directly; everything else goes through BeginTenant, which replaces the
// bypass with tenant isolation.
func Begin(ctx context.Context, pool *pgxpool.Pool) (*UnitOfWork, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.bypass_rls', 'on', true)"); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to mark system transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// BeginTenant opens a transaction and immediately applies the tenant context.
func BeginTenant(ctx context.Context, pool *pgxpool.Pool, tc tenant.Context) (*UnitOfWork, error) {
	uow, err := Begin(ctx, pool)
	if err != nil {
		return nil, err
	}
	if err := uow.SetTenantContext(ctx, tc); err != nil {
		uow.Close(ctx)
		return nil, err
	}
	return uow, nil
}

// SetTenantContext records the context and applies it to the session as
// transaction-local settings. Row-level policies key off app.current_tenant;
// the system bypass is switched off so the policies take over. SET LOCAL
// semantics clear everything when the transaction ends.
func (u *UnitOfWork) SetTenantContext(ctx context.Context, tc tenant.Context) error {
	if tc.TenantID == uuid.Nil {
		return domain.E(domain.CodeTenantContextMissing, "tenant id is required")
	}

	if _, err := u.tx.Exec(ctx, "SELECT set_config('app.bypass_rls', 'off', true)"); err != nil {
		return fmt.Errorf("failed to drop row security bypass: %w", err)
	}
	_, err := u.tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tc.TenantID.String())
	if err != nil {
		return fmt.Errorf("failed to set tenant context: %w", err)
	}
	if tc.UserID != uuid.Nil {
		if _, err := u.tx.Exec(ctx, "SELECT set_config('app.current_user', $1, true)", tc.UserID.String()); err != nil {
			return fmt.Errorf("failed to set user context: %w", err)
		}
	}
	if len(tc.Roles) > 0 {
		if _, err := u.tx.Exec(ctx, "SELECT set_config('app.current_roles', $1, true)", strings.Join(tc.Roles, ",")); err != nil {
			return fmt.Errorf("failed to set roles context: %w", err)
		}
	}

	u.tenantCtx = &tc
	return nil
}

// TenantContext returns the applied context, if any.
func (u *UnitOfWork) TenantContext() (tenant.Context, bool) {
	if u.tenantCtx == nil {
		return tenant.Context{}, false
	}
	return *u.tenantCtx, true
}

// Track registers an aggregate for event drainage at commit. Tracking the
// same aggregate twice is harmless: DrainEvents clears as it drains.
func (u *UnitOfWork) Track(agg EventSource) {
	u.tracked = append(u.tracked, agg)
}

// Tx exposes the transaction to repositories. Never share it across tasks.
func (u *UnitOfWork) Tx() pgx.Tx { return u.tx }

// Commit drains pending events from tracked aggregates into the outbox, then
// commits. The outbox rows and the business mutation are atomic; an event
// serialization failure rolls back everything.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	var events []domain.Event
	for _, agg := range u.tracked {
		events = append(events, agg.DrainEvents()...)
	}
	if len(events) > 0 {
		if err := outbox.Publish(ctx, u.tx, events); err != nil {
			return mapError(err)
		}
	}

	if err := u.tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	u.committed = true
	return nil
}

// Close rolls back unless Commit succeeded. Safe to defer unconditionally.
func (u *UnitOfWork) Close(ctx context.Context) {
	if !u.committed {
		_ = u.tx.Rollback(ctx)
	}
}

// WithTenant runs fn inside a tenant-scoped unit of work and commits on
// success. Mirrors the closure helper style used across the storage layer.
func WithTenant(ctx context.Context, pool *pgxpool.Pool, tc tenant.Context, fn func(*UnitOfWork) error) error {
	uow, err := BeginTenant(ctx, pool, tc)
	if err != nil {
		return err
	}
	defer uow.Close(ctx)

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// WithSystem runs fn with the explicit row-security bypass applied. Reserved
// for system-level flows: the cross-tenant user lookup during login, the
// outbox worker, and janitors.
func WithSystem(ctx context.Context, pool *pgxpool.Pool, fn func(*UnitOfWork) error) error {
	uow, err := Begin(ctx, pool)
	if err != nil {
		return err
	}
	defer uow.Close(ctx)

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit(ctx)
}
