package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/stretchr/testify/assert"
)

func testAuthService() *AuthService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(nil, testJWTConfig(), nil, nil, audit.NopLogger{}, logger)
}

// The ownership check runs before any query: a mismatched id is refused with
// forbidden instead of leaking through to a cross-tenant read.
func TestGetOrganizationByID_RefusesForeignTenant(t *testing.T) {
	s := testAuthService()
	ctx := tenant.With(context.Background(), tenant.Context{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Roles:    []string{string(domain.RoleTenantAdmin)},
	})

	_, err := s.GetOrganizationByID(ctx, uuid.New())
	assert.True(t, domain.IsCode(err, domain.CodeForbidden))
}

func TestGetOrganizationByID_RequiresTenantContext(t *testing.T) {
	s := testAuthService()

	_, err := s.GetOrganizationByID(context.Background(), uuid.New())
	assert.True(t, domain.IsCode(err, domain.CodeTenantContextMissing))
}
