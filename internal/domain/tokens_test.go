package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenValidate(t *testing.T) {
	now := time.Now().UTC()
	tok := NewRefreshToken(uuid.New(), "hash")

	assert.NoError(t, tok.Validate(now))
	assert.True(t, IsCode(tok.Validate(now.Add(RefreshTokenTTL+time.Second)), CodeTokenExpired))

	tok.Revoke(now)
	assert.True(t, IsCode(tok.Validate(now), CodeTokenRevoked))

	// Revoke is idempotent and keeps the first timestamp.
	first := *tok.RevokedAt
	tok.Revoke(now.Add(time.Hour))
	assert.Equal(t, first, *tok.RevokedAt)
}

func TestSingleUseTokenConsume(t *testing.T) {
	now := time.Now().UTC()
	tok := NewSingleUseToken(uuid.New(), SingleUsePasswordReset, "hash", 15*time.Minute)

	require.NoError(t, tok.Consume(now))
	require.NotNil(t, tok.UsedAt)

	assert.True(t, IsCode(tok.Consume(now), CodeTokenAlreadyUsed))
}

func TestSingleUseTokenConsume_ExpiryBeforeReuse(t *testing.T) {
	now := time.Now().UTC()
	tok := NewSingleUseToken(uuid.New(), SingleUseEmailVerification, "hash", time.Minute)
	require.NoError(t, tok.Consume(now))

	// An expired replay reads as expired, not already-used.
	err := tok.Consume(now.Add(2 * time.Minute))
	assert.True(t, IsCode(err, CodeTokenExpired))
}
