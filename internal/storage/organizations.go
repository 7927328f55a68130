package storage

import (
	"context"
	"encoding/json"

	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var organizationColumns = []string{
	"id", "name", "slug", "industry", "metadata", "is_active",
	"created_at", "updated_at", "deleted_at",
}

func organizationToRow(o *domain.Organization) []any {
	metadata, _ := json.Marshal(o.Metadata)
	return []any{
		o.ID, o.Name, o.Slug, o.Industry, metadata, o.IsActive,
		o.CreatedAt, o.UpdatedAt, o.DeletedAt,
	}
}

func organizationFromRow(row pgx.Row) (*domain.Organization, error) {
	var (
		o        domain.Organization
		metadata []byte
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.Slug, &o.Industry, &metadata, &o.IsActive,
		&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &o.Metadata)
	}
	return &o, nil
}

// OrganizationRepo persists tenants in identity.organizations. The table is
// the tenant root itself, so it is not tenant-scoped.
type OrganizationRepo struct {
	*Repo[*domain.Organization]
}

// Organizations returns the tenant repository bound to this unit of work.
func (u *UnitOfWork) Organizations() *OrganizationRepo {
	return &OrganizationRepo{NewRepo(u, "identity.organizations", organizationColumns, false, organizationToRow, organizationFromRow)}
}

// GetBySlug fetches an organization by its globally unique slug.
func (r *OrganizationRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return r.FindOne(ctx, Filters{"slug": slug, "deleted_at": nil})
}
