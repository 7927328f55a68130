package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// apiKeyPrefixLen is how many leading characters are stored in clear for
// candidate lookup.
const apiKeyPrefixLen = 12

// CreateAPIKeyInput carries the fields for minting a machine credential.
type CreateAPIKeyInput struct {
	Name        string
	Permissions []string
	ExpiresAt   *time.Time
}

// CreatedAPIKey pairs the stored record with the raw key, which is shown to
// the caller exactly once.
type CreatedAPIKey struct {
	Key    *domain.APIKey
	RawKey string
}

// CreateAPIKey mints a key scoped to the caller's organization. Granted
// permissions must be a subset of the caller's own.
func (s *AuthService) CreateAPIKey(ctx context.Context, in CreateAPIKeyInput) (*CreatedAPIKey, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	perms := make([]domain.Permission, 0, len(in.Permissions))
	for _, p := range in.Permissions {
		perm, err := domain.NewPermission(p)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}

	raw, err := GenerateSecureToken(32)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to generate api key", err)
	}
	raw = "hrk_" + raw
	prefix := raw[:apiKeyPrefixLen]

	userID := tc.UserID
	key, err := domain.NewAPIKey(tc.TenantID, &userID, in.Name, HashToken(raw), prefix, perms, in.ExpiresAt)
	if err != nil {
		return nil, err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		return uow.APIKeys().Add(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditAPIKeyCreated, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "api_key",
		ResourceID:     key.ID,
	})
	return &CreatedAPIKey{Key: key, RawKey: raw}, nil
}

// RevokeAPIKey deactivates a key. Idempotent.
func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		key, err := uow.APIKeys().GetByID(ctx, keyID)
		if err != nil {
			return err
		}
		key.Revoke(time.Now().UTC())
		return uow.APIKeys().Update(ctx, key.ID, key)
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, domain.AuditAPIKeyRevoked, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "api_key",
		ResourceID:     keyID,
	})
	return nil
}

// ListAPIKeys pages the organization's keys.
func (s *AuthService) ListAPIKeys(ctx context.Context, skip, limit int) ([]*domain.APIKey, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var keys []*domain.APIKey
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		keys, err = uow.APIKeys().FindAll(ctx, storage.Filters{"organization_id": tc.TenantID}, skip, limit, "created_at DESC")
		return err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// AuthenticateAPIKey resolves a raw key to its tenant context. Candidates are
// narrowed by the clear-text prefix, then the full hash is compared in
// constant time.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if len(rawKey) < apiKeyPrefixLen || !strings.HasPrefix(rawKey, "hrk_") {
		return nil, domain.E(domain.CodeUnauthorized, "invalid api key")
	}
	hash := HashToken(rawKey)

	var matched *domain.APIKey
	err := storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		candidates, err := uow.APIKeys().GetByPrefixForAuth(ctx, rawKey[:apiKeyPrefixLen])
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, key := range candidates {
			if !SecureCompare(hash, key.KeyHash) {
				continue
			}
			if err := key.Validate(now); err != nil {
				return err
			}
			if err := uow.APIKeys().TouchLastUsed(ctx, key.ID, now); err != nil {
				return err
			}
			matched = key
			return nil
		}
		return domain.E(domain.CodeUnauthorized, "invalid api key")
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}
