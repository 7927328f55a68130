package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a long-lived machine credential. The prefix is stored in clear for
// lookup; the full key is hashed.
type APIKey struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         *uuid.UUID
	Name           string
	KeyHash        string
	KeyPrefix      string
	Permissions    []Permission
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	IsActive       bool
	RevokedAt      *time.Time
	CreatedAt      time.Time
}

// NewAPIKey records a hashed key.
func NewAPIKey(orgID uuid.UUID, userID *uuid.UUID, name, keyHash, keyPrefix string, perms []Permission, expiresAt *time.Time) (*APIKey, error) {
	if name == "" {
		return nil, E(CodeValidationError, "api key name is required")
	}
	if keyHash == "" || keyPrefix == "" {
		return nil, E(CodeValidationError, "api key hash and prefix are required")
	}
	return &APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Name:           name,
		KeyHash:        keyHash,
		KeyPrefix:      keyPrefix,
		Permissions:    UnionPermissions(perms),
		ExpiresAt:      expiresAt,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Validate returns why the key cannot be used, or nil when live.
func (k *APIKey) Validate(now time.Time) error {
	if k.RevokedAt != nil || !k.IsActive {
		return E(CodeAPIKeyRevoked, "api key revoked")
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return E(CodeAPIKeyExpired, "api key expired")
	}
	return nil
}

// Revoke deactivates the key. Idempotent.
func (k *APIKey) Revoke(now time.Time) {
	if k.RevokedAt == nil {
		k.RevokedAt = &now
	}
	k.IsActive = false
}

// Touch records usage time.
func (k *APIKey) Touch(now time.Time) { k.LastUsedAt = &now }
