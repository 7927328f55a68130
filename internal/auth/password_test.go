package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2idHasher_HashAndCompare(t *testing.T) {
	h := NewArgon2idHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	assert.NoError(t, h.Compare(hash, "correct horse battery staple"))
	assert.Error(t, h.Compare(hash, "wrong password"))
}

func TestArgon2idHasher_UniqueSalts(t *testing.T) {
	h := NewArgon2idHasher()

	a, err := h.Hash("same input")
	require.NoError(t, err)
	b, err := h.Hash("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestArgon2idHasher_MalformedHash(t *testing.T) {
	h := NewArgon2idHasher()

	assert.Error(t, h.Compare("", "pw"))
	assert.Error(t, h.Compare("$bcrypt$nope", "pw"))
	assert.Error(t, h.Compare("$argon2id$v=19$m=65536,t=3,p=4$!!!$???", "pw"))
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 129)))
	assert.NoError(t, ValidatePassword("longenough"))
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 43) // 32 bytes base64url

	// Short lengths are raised to the floor, never honored.
	c, err := GenerateSecureToken(4)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(c), 43)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("token", "token"))
	assert.False(t, SecureCompare("token", "Token"))
	assert.False(t, SecureCompare("token", "token2"))
}
