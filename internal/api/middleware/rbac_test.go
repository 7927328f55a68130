package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(roles []string, perms []string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	ctx := tenant.With(req.Context(), tenant.Context{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Roles:    roles,
	})
	ctx = withPermissions(ctx, perms)
	return req.WithContext(ctx)
}

func TestRequirePermission_Granted(t *testing.T) {
	rr := httptest.NewRecorder()
	req := authedRequest([]string{"agent"}, []string{"messages:send", "messages:read"})

	RequirePermission("messages:send")(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequirePermission_Missing(t *testing.T) {
	rr := httptest.NewRecorder()
	req := authedRequest([]string{"agent"}, []string{"messages:read"})

	RequirePermission("messages:send")(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "messages:send")
}

func TestRequirePermission_SuperAdminBypass(t *testing.T) {
	rr := httptest.NewRecorder()
	req := authedRequest([]string{"super_admin"}, nil)

	RequirePermission("channels:delete")(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequirePermission_NoTenantContext(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)

	RequirePermission("messages:read")(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRole_Hierarchy(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required domain.RoleName
		want     int
	}{
		{"admin passes admin gate", []string{"tenant_admin"}, domain.RoleTenantAdmin, http.StatusOK},
		{"super admin passes admin gate", []string{"super_admin"}, domain.RoleTenantAdmin, http.StatusOK},
		{"agent fails admin gate", []string{"agent"}, domain.RoleTenantAdmin, http.StatusForbidden},
		{"admin fails super admin gate", []string{"tenant_admin"}, domain.RoleSuperAdmin, http.StatusForbidden},
		{"highest of several roles counts", []string{"read_only", "tenant_admin"}, domain.RoleTenantAdmin, http.StatusOK},
		{"custom role has no weight", []string{"billing"}, domain.RoleReadOnly, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := authedRequest(tt.roles, nil)

			RequireRole(tt.required)(okHandler()).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestHasPermission_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, HasPermission(req.Context(), "messages:read"))
}
