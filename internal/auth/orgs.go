package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// systemRoleSeeds are created for every new organization. The permission sets
// mirror the hierarchy: tenant_admin gets everything tenant-local.
var systemRoleSeeds = []struct {
	name        domain.RoleName
	description string
	permissions []string
}{
	{domain.RoleTenantAdmin, "Full control inside the organization", []string{
		"users:read", "users:write", "users:delete",
		"roles:read", "roles:write",
		"channels:read", "channels:write", "channels:delete",
		"messages:read", "messages:send",
		"templates:read", "templates:write",
		"api_keys:read", "api_keys:write",
		"audit_logs:read",
	}},
	{domain.RoleAgent, "Day-to-day messaging operations", []string{
		"channels:read",
		"messages:read", "messages:send",
		"templates:read",
	}},
	{domain.RoleReadOnly, "Read-only access", []string{
		"channels:read", "messages:read", "templates:read",
	}},
}

// ProvisionInput carries everything needed to bootstrap a tenant.
type ProvisionInput struct {
	Name          string
	Slug          string
	Industry      string
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// ProvisionResult is the freshly created tenant and its first administrator.
type ProvisionResult struct {
	Organization *domain.Organization
	Admin        *domain.User
}

// ProvisionOrganization creates a tenant, seeds its system roles, and creates
// the first administrator, all in one transaction. A failure at any step
// leaves no partial tenant behind.
func (s *AuthService) ProvisionOrganization(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	org, err := domain.NewOrganization(in.Name, in.Slug, in.Industry)
	if err != nil {
		return nil, err
	}

	adminEmail, err := domain.NewEmail(in.AdminEmail)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.AdminPassword); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.AdminPassword)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to hash password", err)
	}
	admin, err := domain.NewUser(org.ID, adminEmail, domain.PasswordHash(hash), in.AdminName)
	if err != nil {
		return nil, err
	}

	err = storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		if err := uow.Organizations().Add(ctx, org); err != nil {
			return err
		}

		// Everything below is rows of the new tenant.
		if err := uow.SetTenantContext(ctx, tenant.Context{TenantID: org.ID}); err != nil {
			return err
		}

		var adminRoleID uuid.UUID
		for _, seed := range systemRoleSeeds {
			role, err := domain.NewRole(org.ID, string(seed.name), seed.description, seed.permissions)
			if err != nil {
				return err
			}
			role.IsSystem = true
			if err := uow.Roles().Add(ctx, role); err != nil {
				return err
			}
			if seed.name == domain.RoleTenantAdmin {
				adminRoleID = role.ID
			}
		}

		if err := uow.Users().Add(ctx, admin); err != nil {
			return err
		}
		if err := uow.Roles().Assign(ctx, domain.UserRole{
			UserID:    admin.ID,
			RoleID:    adminRoleID,
			GrantedAt: time.Now().UTC(),
			GrantedBy: admin.ID,
		}); err != nil {
			return err
		}

		uow.Track(org)
		uow.Track(admin)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditOrgCreated, audit.LogParams{
		OrganizationID: org.ID,
		UserID:         admin.ID,
		ResourceType:   "organization",
		ResourceID:     org.ID,
	})
	return &ProvisionResult{Organization: org, Admin: admin}, nil
}

// GetOrganization returns the caller's organization.
func (s *AuthService) GetOrganization(ctx context.Context) (*domain.Organization, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var org *domain.Organization
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		org, err = uow.Organizations().GetByID(ctx, tc.TenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganizationByID returns one organization by id. Callers may only read
// their own; the cross-tenant admin role may read any.
func (s *AuthService) GetOrganizationByID(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	if orgID != tc.TenantID && !tc.IsAdmin() {
		return nil, domain.E(domain.CodeForbidden, "organization belongs to another tenant")
	}

	var org *domain.Organization
	err = storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		org, err = uow.Organizations().GetByID(ctx, orgID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganization patches name, industry, and metadata.
func (s *AuthService) UpdateOrganization(ctx context.Context, name, industry string, metadata *domain.OrganizationMetadata) (*domain.Organization, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var org *domain.Organization
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		org, err = uow.Organizations().GetByID(ctx, tc.TenantID)
		if err != nil {
			return err
		}
		if name != "" {
			org.Name = name
		}
		if industry != "" {
			org.Industry = industry
		}
		if metadata != nil {
			org.Metadata = *metadata
		}
		org.UpdatedAt = time.Now().UTC()
		return uow.Organizations().Update(ctx, org.ID, org)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// DeactivateOrganization disables the tenant. Existing sessions keep their
// access tokens until expiry; new logins and sends are refused.
func (s *AuthService) DeactivateOrganization(ctx context.Context, orgID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	if !tc.IsAdmin() {
		return domain.E(domain.CodePermissionDenied, "only a super admin may deactivate organizations")
	}

	err = storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		org, err := uow.Organizations().GetByID(ctx, orgID)
		if err != nil {
			return err
		}
		org.Deactivate()
		if err := uow.Organizations().Update(ctx, org.ID, org); err != nil {
			return err
		}
		uow.Track(org)
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, domain.AuditOrgDeactivated, audit.LogParams{
		OrganizationID: orgID,
		UserID:         tc.UserID,
		ResourceType:   "organization",
		ResourceID:     orgID,
	})
	return nil
}
