package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken stores the SHA-256 hash of an opaque session token. The
// plaintext is shown to the client exactly once and never persisted.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// RefreshTokenTTL is the lifetime of a refresh token family member.
const RefreshTokenTTL = 7 * 24 * time.Hour

// NewRefreshToken records a hashed token valid for RefreshTokenTTL.
func NewRefreshToken(userID uuid.UUID, tokenHash string) *RefreshToken {
	now := time.Now().UTC()
	return &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(RefreshTokenTTL),
		CreatedAt: now,
	}
}

// Validate returns the domain code describing why the token cannot be used,
// or nil when it is live.
func (t *RefreshToken) Validate(now time.Time) error {
	if t.RevokedAt != nil {
		return E(CodeTokenRevoked, "refresh token revoked")
	}
	if !t.ExpiresAt.After(now) {
		return E(CodeTokenExpired, "refresh token expired")
	}
	return nil
}

// Revoke stamps the revocation time. Idempotent.
func (t *RefreshToken) Revoke(now time.Time) {
	if t.RevokedAt == nil {
		t.RevokedAt = &now
	}
}

// SingleUseKind discriminates the one-shot token tables.
type SingleUseKind string

const (
	SingleUseEmailVerification SingleUseKind = "email_verification"
	SingleUsePasswordReset     SingleUseKind = "password_reset"
)

// SingleUseToken backs email verification and password reset. A token is
// consumed exactly once; reuse is a policy error.
type SingleUseToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      SingleUseKind
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// NewSingleUseToken records a hashed token with the given lifetime.
func NewSingleUseToken(userID uuid.UUID, kind SingleUseKind, tokenHash string, ttl time.Duration) *SingleUseToken {
	now := time.Now().UTC()
	return &SingleUseToken{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Consume validates and marks the token used. Order matters: expiry is
// checked before reuse so an expired-then-replayed token reads as expired.
func (t *SingleUseToken) Consume(now time.Time) error {
	if !t.ExpiresAt.After(now) {
		return E(CodeTokenExpired, "token expired")
	}
	if t.UsedAt != nil {
		return E(CodeTokenAlreadyUsed, "token already used")
	}
	t.UsedAt = &now
	return nil
}
