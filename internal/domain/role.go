package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoleName identifies the built-in system roles.
type RoleName string

const (
	RoleSuperAdmin    RoleName = "super_admin"
	RoleResellerAdmin RoleName = "reseller_admin"
	RoleTenantAdmin   RoleName = "tenant_admin"
	RoleAgent         RoleName = "agent"
	RoleReadOnly      RoleName = "read_only"
)

// roleWeights order the management hierarchy. A user may only be managed by a
// strictly higher role in the same tenant; super_admin crosses tenants.
var roleWeights = map[RoleName]int{
	RoleSuperAdmin:    5,
	RoleResellerAdmin: 4,
	RoleTenantAdmin:   3,
	RoleAgent:         2,
	RoleReadOnly:      1,
}

// Weight returns the hierarchy weight of a role name (0 for custom roles).
func (r RoleName) Weight() int { return roleWeights[r] }

// CanManage reports whether actor may manage target. Equal ranks never manage
// each other.
func CanManage(actor, target RoleName) bool {
	if actor == RoleSuperAdmin {
		return target != RoleSuperAdmin
	}
	return actor.Weight() > target.Weight()
}

// HighestRole picks the highest-weighted role from a list of role names.
func HighestRole(names []string) RoleName {
	best := RoleName("")
	for _, n := range names {
		r := RoleName(n)
		if r.Weight() > best.Weight() {
			best = r
		}
	}
	return best
}

// Role groups permissions inside one organization. System roles are immutable.
type Role struct {
	AggregateRoot

	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Description    string
	Permissions    []Permission
	IsSystem       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRole creates a custom role after validating its permissions.
func NewRole(orgID uuid.UUID, name, description string, perms []string) (*Role, error) {
	if name == "" {
		return nil, E(CodeValidationError, "role name is required")
	}
	validated := make([]Permission, 0, len(perms))
	for _, p := range perms {
		perm, err := NewPermission(p)
		if err != nil {
			return nil, err
		}
		validated = append(validated, perm)
	}

	now := time.Now().UTC()
	return &Role{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Description:    description,
		Permissions:    UnionPermissions(validated),
		IsSystem:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Update modifies a custom role. Any modification of a system role, including
// its description, is a policy error.
func (r *Role) Update(description string, perms []string) error {
	if r.IsSystem {
		return E(CodePermissionDenied, "system roles are immutable")
	}
	validated := make([]Permission, 0, len(perms))
	for _, p := range perms {
		perm, err := NewPermission(p)
		if err != nil {
			return err
		}
		validated = append(validated, perm)
	}
	r.Description = description
	r.Permissions = UnionPermissions(validated)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// UserRole is the assignment join row, unique on (user_id, role_id).
type UserRole struct {
	UserID    uuid.UUID
	RoleID    uuid.UUID
	GrantedAt time.Time
	GrantedBy uuid.UUID
}
