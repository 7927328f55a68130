// Package tenant carries the request-scoped isolation context. The bundle is
// threaded through context.Context and applied by the unit of work as
// transaction-local database settings so row-level policies can filter rows.
package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// Context identifies the tenant, acting user, and roles for one request.
type Context struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Roles     []string
	RequestID string
}

// IsAdmin reports whether the context carries the cross-tenant role that may
// operate without row isolation.
func (c Context) IsAdmin() bool {
	for _, r := range c.Roles {
		if domain.RoleName(r) == domain.RoleSuperAdmin {
			return true
		}
	}
	return false
}

// contextKey is a private type so other packages cannot collide with ours.
type contextKey struct{}

// With attaches the tenant context to ctx.
func With(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// From extracts the tenant context, reporting whether it was present.
func From(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	return tc, ok
}

// MustFrom extracts the tenant context or panics. A missing context on a
// tenant-scoped path is a programming defect, not a user error.
func MustFrom(ctx context.Context) Context {
	tc, ok := From(ctx)
	if !ok {
		panic(fmt.Sprintf("%s: tenant context missing", domain.CodeTenantContextMissing))
	}
	return tc
}

// Require extracts the tenant context or returns the domain error.
func Require(ctx context.Context) (Context, error) {
	tc, ok := From(ctx)
	if !ok || tc.TenantID == uuid.Nil {
		return Context{}, domain.E(domain.CodeTenantContextMissing, "tenant context missing")
	}
	return tc, nil
}
