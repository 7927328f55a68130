package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/stretchr/testify/assert"
)

// The guard must refuse before any SQL reaches the session: none of these
// cases touch a database.

func TestRepo_RefusesScopedOperationsWithoutTenantContext(t *testing.T) {
	ctx := context.Background()
	uow := &UnitOfWork{}

	_, err := uow.Users().GetByID(ctx, uuid.New())
	assert.True(t, domain.IsCode(err, domain.CodeTenantContextMissing))

	_, err = uow.Roles().FindAll(ctx, Filters{"organization_id": uuid.New()}, 0, 10, "name")
	assert.True(t, domain.IsCode(err, domain.CodeTenantContextMissing))

	err = uow.Users().Delete(ctx, uuid.New())
	assert.True(t, domain.IsCode(err, domain.CodeTenantContextMissing))

	_, err = uow.Channels().Count(ctx, nil)
	assert.True(t, domain.IsCode(err, domain.CodeTenantContextMissing))
}

func TestRepo_GuardAdmissions(t *testing.T) {
	t.Run("applied tenant context passes", func(t *testing.T) {
		uow := &UnitOfWork{tenantCtx: &tenant.Context{TenantID: uuid.New()}}
		assert.NoError(t, uow.Users().guard(context.Background()))
	})

	t.Run("cross-tenant admin on the request passes", func(t *testing.T) {
		ctx := tenant.With(context.Background(), tenant.Context{
			TenantID: uuid.New(),
			Roles:    []string{string(domain.RoleSuperAdmin)},
		})
		uow := &UnitOfWork{}
		assert.NoError(t, uow.Users().guard(ctx))
	})

	t.Run("request context without the admin role is not enough", func(t *testing.T) {
		ctx := tenant.With(context.Background(), tenant.Context{TenantID: uuid.New()})
		uow := &UnitOfWork{}
		err := uow.Users().guard(ctx)
		assert.True(t, domain.IsCode(err, domain.CodeTenantContextMissing))
	})

	t.Run("unscoped tables are exempt", func(t *testing.T) {
		uow := &UnitOfWork{}
		assert.NoError(t, uow.Organizations().guard(context.Background()))
	})
}
