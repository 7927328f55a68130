package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanManage(t *testing.T) {
	cases := []struct {
		actor, target RoleName
		want          bool
	}{
		{RoleSuperAdmin, RoleTenantAdmin, true},
		{RoleSuperAdmin, RoleResellerAdmin, true},
		{RoleSuperAdmin, RoleSuperAdmin, false},
		{RoleTenantAdmin, RoleAgent, true},
		{RoleTenantAdmin, RoleReadOnly, true},
		{RoleTenantAdmin, RoleTenantAdmin, false},
		{RoleAgent, RoleTenantAdmin, false},
		{RoleAgent, RoleAgent, false},
		{RoleReadOnly, RoleReadOnly, false},
		{RoleTenantAdmin, RoleName("custom"), true},
		{RoleName("custom"), RoleReadOnly, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanManage(tc.actor, tc.target),
			"%s managing %s", tc.actor, tc.target)
	}
}

func TestHighestRole(t *testing.T) {
	assert.Equal(t, RoleTenantAdmin, HighestRole([]string{"read_only", "tenant_admin", "agent"}))
	assert.Equal(t, RoleReadOnly, HighestRole([]string{"read_only", "custom"}))
	assert.Equal(t, RoleName(""), HighestRole(nil))
}

func TestNewRole(t *testing.T) {
	role, err := NewRole(uuid.New(), "support", "handles tickets", []string{"messages:read", "messages:read", "channels:read"})
	require.NoError(t, err)
	assert.False(t, role.IsSystem)
	assert.Equal(t, []Permission{"messages:read", "channels:read"}, role.Permissions)

	_, err = NewRole(uuid.New(), "", "", nil)
	assert.True(t, IsCode(err, CodeValidationError))

	_, err = NewRole(uuid.New(), "support", "", []string{"bad permission"})
	assert.True(t, IsCode(err, CodeValidationError))
}

func TestRoleUpdate_SystemImmutable(t *testing.T) {
	role, err := NewRole(uuid.New(), "support", "", []string{"messages:read"})
	require.NoError(t, err)

	require.NoError(t, role.Update("updated", []string{"messages:send"}))
	assert.Equal(t, []Permission{"messages:send"}, role.Permissions)

	role.IsSystem = true
	err = role.Update("still updated", []string{"messages:read"})
	assert.True(t, IsCode(err, CodePermissionDenied))
}
