package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var apiKeyColumns = []string{
	"id", "organization_id", "user_id", "name", "key_hash", "key_prefix",
	"permissions", "last_used_at", "expires_at", "is_active", "revoked_at", "created_at",
}

func apiKeyToRow(k *domain.APIKey) []any {
	perms := make([]string, len(k.Permissions))
	for i, p := range k.Permissions {
		perms[i] = p.String()
	}
	return []any{
		k.ID, k.OrganizationID, k.UserID, k.Name, k.KeyHash, k.KeyPrefix,
		perms, k.LastUsedAt, k.ExpiresAt, k.IsActive, k.RevokedAt, k.CreatedAt,
	}
}

func apiKeyFromRow(row pgx.Row) (*domain.APIKey, error) {
	var (
		k     domain.APIKey
		perms []string
	)
	err := row.Scan(
		&k.ID, &k.OrganizationID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
		&perms, &k.LastUsedAt, &k.ExpiresAt, &k.IsActive, &k.RevokedAt, &k.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	k.Permissions = make([]domain.Permission, len(perms))
	for i, p := range perms {
		k.Permissions[i] = domain.Permission(p)
	}
	return &k, nil
}

// APIKeyRepo persists machine credentials in identity.api_keys.
type APIKeyRepo struct {
	*Repo[*domain.APIKey]
}

// APIKeys returns the repository bound to this unit of work.
func (u *UnitOfWork) APIKeys() *APIKeyRepo {
	return &APIKeyRepo{NewRepo(u, "identity.api_keys", apiKeyColumns, true, apiKeyToRow, apiKeyFromRow)}
}

// GetByPrefixForAuth narrows candidates by the clear-text prefix; the caller
// then verifies the full hash in constant time. Key verification runs before
// any tenant is known, so it executes on a system unit of work and the caller
// applies the key's tenant afterwards.
func (r *APIKeyRepo) GetByPrefixForAuth(ctx context.Context, prefix string) ([]*domain.APIKey, error) {
	return r.queryMany(ctx,
		"SELECT "+r.columnList()+" FROM identity.api_keys WHERE key_prefix = $1 AND is_active ORDER BY created_at DESC LIMIT 10",
		prefix)
}

// TouchLastUsed records usage without rewriting the whole row.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.uow.Tx().Exec(ctx,
		"UPDATE identity.api_keys SET last_used_at = $2 WHERE id = $1", id, at)
	return mapError(err)
}
