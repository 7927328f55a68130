package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var roleColumns = []string{
	"id", "organization_id", "name", "description", "permissions", "is_system",
	"created_at", "updated_at",
}

func roleToRow(r *domain.Role) []any {
	perms := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		perms[i] = p.String()
	}
	return []any{
		r.ID, r.OrganizationID, r.Name, r.Description, perms, r.IsSystem,
		r.CreatedAt, r.UpdatedAt,
	}
}

func roleFromRow(row pgx.Row) (*domain.Role, error) {
	var (
		r     domain.Role
		perms []string
	)
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.Name, &r.Description, &perms, &r.IsSystem,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Permissions = make([]domain.Permission, len(perms))
	for i, p := range perms {
		r.Permissions[i] = domain.Permission(p)
	}
	return &r, nil
}

// RoleRepo persists roles and the user_roles join in identity.*.
type RoleRepo struct {
	*Repo[*domain.Role]
}

// Roles returns the role repository bound to this unit of work.
func (u *UnitOfWork) Roles() *RoleRepo {
	return &RoleRepo{NewRepo(u, "identity.roles", roleColumns, true, roleToRow, roleFromRow)}
}

// GetByName fetches a role by per-organization unique name.
func (r *RoleRepo) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*domain.Role, error) {
	return r.FindOne(ctx, Filters{"organization_id": orgID, "name": name})
}

// ListForUser returns the roles assigned to a user.
func (r *RoleRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Role, error) {
	return r.Query(ctx, `
		SELECT `+r.columnList()+`
		FROM identity.roles
		JOIN identity.user_roles ur ON ur.role_id = identity.roles.id
		WHERE ur.user_id = $1
		ORDER BY identity.roles.name
	`, userID)
}

// Assign inserts the join row; duplicate assignment maps to conflict.
func (r *RoleRepo) Assign(ctx context.Context, assignment domain.UserRole) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	_, err := r.uow.Tx().Exec(ctx, `
		INSERT INTO identity.user_roles (user_id, role_id, granted_at, granted_by)
		VALUES ($1, $2, $3, $4)
	`, assignment.UserID, assignment.RoleID, assignment.GrantedAt, assignment.GrantedBy)
	return mapError(err)
}

// Revoke removes the join row; a missing assignment is not_found.
func (r *RoleRepo) Revoke(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	tag, err := r.uow.Tx().Exec(ctx,
		"DELETE FROM identity.user_roles WHERE user_id = $1 AND role_id = $2",
		userID, roleID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.CodeNotFound, "role assignment not found")
	}
	return nil
}

// Assignments lists join rows for a user.
func (r *RoleRepo) Assignments(ctx context.Context, userID uuid.UUID) ([]domain.UserRole, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	rows, err := r.uow.Tx().Query(ctx,
		"SELECT user_id, role_id, granted_at, granted_by FROM identity.user_roles WHERE user_id = $1",
		userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []domain.UserRole
	for rows.Next() {
		var ur domain.UserRole
		var grantedAt time.Time
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &grantedAt, &ur.GrantedBy); err != nil {
			return nil, mapError(err)
		}
		ur.GrantedAt = grantedAt
		out = append(out, ur)
	}
	return out, mapError(rows.Err())
}
