package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/config"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.Config {
	return &config.Config{
		JWTAlgorithm:   "HS256",
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		JWTIssuer:      "hyrelay-test",
		JWTAudience:    "hyrelay-api",
		AccessTokenTTL: 15 * time.Minute,
	}
}

func testUser(t *testing.T) *domain.User {
	t.Helper()
	email, err := domain.NewEmail("agent@example.com")
	require.NoError(t, err)
	user, err := domain.NewUser(uuid.New(), email, domain.PasswordHash("x"), "Agent")
	require.NoError(t, err)
	return user
}

func TestJWTProvider_RoundTrip(t *testing.T) {
	p, err := NewJWTProvider(testJWTConfig())
	require.NoError(t, err)

	user := testUser(t)
	signed, err := p.GenerateAccessToken(user, []string{"agent"}, []string{"messages:send"})
	require.NoError(t, err)

	claims, err := p.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, user.OrganizationID, claims.OrganizationID)
	assert.Equal(t, "agent@example.com", claims.Email)
	assert.Equal(t, []string{"agent"}, claims.Roles)
	assert.Equal(t, []string{"messages:send"}, claims.Permissions)
	assert.Equal(t, "access", claims.TokenType)
}

func TestJWTProvider_RejectsWrongKey(t *testing.T) {
	p1, err := NewJWTProvider(testJWTConfig())
	require.NoError(t, err)

	other := testJWTConfig()
	other.JWTSecret = "ffffffffffffffffffffffffffffffff"
	p2, err := NewJWTProvider(other)
	require.NoError(t, err)

	signed, err := p1.GenerateAccessToken(testUser(t), nil, nil)
	require.NoError(t, err)

	_, err = p2.ValidateToken(signed)
	assert.True(t, domain.IsCode(err, domain.CodeTokenInvalid))
}

func TestJWTProvider_RejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessTokenTTL = -5 * time.Minute
	p, err := NewJWTProvider(cfg)
	require.NoError(t, err)

	signed, err := p.GenerateAccessToken(testUser(t), nil, nil)
	require.NoError(t, err)

	_, err = p.ValidateToken(signed)
	assert.True(t, domain.IsCode(err, domain.CodeTokenExpired))
}

func TestJWTProvider_RejectsTampered(t *testing.T) {
	p, err := NewJWTProvider(testJWTConfig())
	require.NoError(t, err)

	signed, err := p.GenerateAccessToken(testUser(t), nil, nil)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = p.ValidateToken(tampered)
	assert.True(t, domain.IsCode(err, domain.CodeTokenInvalid))
}

func TestJWTProvider_RequiresStrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.JWTSecret = "too-short"
	_, err := NewJWTProvider(cfg)
	assert.Error(t, err)
}

func TestJWTProvider_RejectsUnknownAlgorithm(t *testing.T) {
	cfg := testJWTConfig()
	cfg.JWTAlgorithm = "ES512"
	_, err := NewJWTProvider(cfg)
	assert.Error(t, err)
}
