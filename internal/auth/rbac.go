package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RBACService manages roles and assignments inside one organization.
// Management actions are gated by the role hierarchy: an actor may only act
// on users whose highest role ranks strictly below their own.
type RBACService struct {
	pool   *pgxpool.Pool
	audit  audit.Service
	logger *slog.Logger
}

func NewRBACService(pool *pgxpool.Pool, auditor audit.Service, logger *slog.Logger) *RBACService {
	return &RBACService{pool: pool, audit: auditor, logger: logger.With("component", "rbac")}
}

// CreateRole adds a custom role to the caller's organization.
func (s *RBACService) CreateRole(ctx context.Context, name, description string, permissions []string) (*domain.Role, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	role, err := domain.NewRole(tc.TenantID, name, description, permissions)
	if err != nil {
		return nil, err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		return uow.Roles().Add(ctx, role)
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// UpdateRole modifies a custom role; system roles are immutable.
func (s *RBACService) UpdateRole(ctx context.Context, roleID uuid.UUID, description string, permissions []string) (*domain.Role, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var role *domain.Role
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		role, err = uow.Roles().GetByID(ctx, roleID)
		if err != nil {
			return err
		}
		if err := role.Update(description, permissions); err != nil {
			return err
		}
		return uow.Roles().Update(ctx, role.ID, role)
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a custom role and all its assignments.
func (s *RBACService) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	return storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		role, err := uow.Roles().GetByID(ctx, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return domain.E(domain.CodePermissionDenied, "system roles cannot be deleted")
		}
		if _, err := uow.Tx().Exec(ctx, "DELETE FROM identity.user_roles WHERE role_id = $1", roleID); err != nil {
			return err
		}
		return uow.Roles().Delete(ctx, roleID)
	})
}

// ListRoles returns the organization's roles.
func (s *RBACService) ListRoles(ctx context.Context, skip, limit int) ([]*domain.Role, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var roles []*domain.Role
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		roles, err = uow.Roles().FindAll(ctx, storage.Filters{"organization_id": tc.TenantID}, skip, limit, "name")
		return err
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ListUserRoles returns the roles assigned to one user in the caller's
// organization.
func (s *RBACService) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]*domain.Role, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var roles []*domain.Role
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if _, err := uow.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		roles, err = uow.Roles().ListForUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRole grants a role to a user after the hierarchy check.
func (s *RBACService) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if err := s.requireCanManage(ctx, uow, tc, userID); err != nil {
			return err
		}
		if _, err := uow.Roles().GetByID(ctx, roleID); err != nil {
			return err
		}
		return uow.Roles().Assign(ctx, domain.UserRole{
			UserID:    userID,
			RoleID:    roleID,
			GrantedAt: time.Now().UTC(),
			GrantedBy: tc.UserID,
		})
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, domain.AuditRoleAssigned, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "user",
		ResourceID:     userID,
		Metadata:       map[string]any{"role_id": roleID},
	})
	return nil
}

// RevokeRole removes a role assignment after the hierarchy check.
func (s *RBACService) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if err := s.requireCanManage(ctx, uow, tc, userID); err != nil {
			return err
		}
		return uow.Roles().Revoke(ctx, userID, roleID)
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, domain.AuditRoleRevoked, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "user",
		ResourceID:     userID,
		Metadata:       map[string]any{"role_id": roleID},
	})
	return nil
}

// DeactivateUser disables an account and ends its sessions. Self-deactivation
// is rejected; hierarchy rules apply to everyone else.
func (s *RBACService) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	if userID == tc.UserID {
		return domain.E(domain.CodeValidationError, "cannot deactivate your own account")
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if err := s.requireCanManage(ctx, uow, tc, userID); err != nil {
			return err
		}
		user, err := uow.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.Deactivate()
		if err := uow.Users().Update(ctx, user.ID, user); err != nil {
			return err
		}
		if _, err := uow.RefreshTokens().RevokeAllForUser(ctx, user.ID, time.Now().UTC()); err != nil {
			return err
		}
		uow.Track(user)
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, domain.AuditUserDeactivated, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "user",
		ResourceID:     userID,
	})
	return nil
}

// requireCanManage enforces the hierarchy: the actor's highest role must rank
// strictly above the target's highest role.
func (s *RBACService) requireCanManage(ctx context.Context, uow *storage.UnitOfWork, tc tenant.Context, targetID uuid.UUID) error {
	actorHighest := domain.HighestRole(tc.Roles)

	targetRoles, err := uow.Roles().ListForUser(ctx, targetID)
	if err != nil {
		return err
	}
	names := make([]string, len(targetRoles))
	for i, r := range targetRoles {
		names[i] = r.Name
	}
	targetHighest := domain.HighestRole(names)

	if !domain.CanManage(actorHighest, targetHighest) {
		s.audit.Log(ctx, domain.AuditUnauthorizedAccess, audit.LogParams{
			OrganizationID: tc.TenantID,
			UserID:         tc.UserID,
			ResourceType:   "user",
			ResourceID:     targetID,
			Metadata:       map[string]any{"reason": "role_hierarchy"},
		})
		return domain.E(domain.CodePermissionDenied, "insufficient role to manage this user")
	}
	return nil
}
