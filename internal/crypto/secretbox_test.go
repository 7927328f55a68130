package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBox(t *testing.T) *SecretBox {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	box, err := NewSecretBox(key)
	require.NoError(t, err)
	return box
}

func TestSecretBox_RoundTrip(t *testing.T) {
	box := testBox(t)

	sealed, err := box.Seal("EAAGm0PX4ZCpsBO9ZCZBxyz")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "enc:"))
	assert.True(t, IsSealed(sealed))

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "EAAGm0PX4ZCpsBO9ZCZBxyz", plain)
}

func TestSecretBox_UniqueNonces(t *testing.T) {
	box := testBox(t)

	a, err := box.Seal("same secret")
	require.NoError(t, err)
	b, err := box.Seal("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSecretBox_RejectsTampering(t *testing.T) {
	box := testBox(t)

	sealed, err := box.Seal("secret")
	require.NoError(t, err)

	tampered := sealed[:len(sealed)-2] + "AA"
	if tampered == sealed {
		tampered = sealed[:len(sealed)-2] + "BB"
	}
	_, err = box.Open(tampered)
	assert.Error(t, err)
}

func TestSecretBox_RejectsPlaintext(t *testing.T) {
	box := testBox(t)

	_, err := box.Open("not-encrypted-at-all")
	assert.Error(t, err)
}

func TestSecretBox_RejectsWrongKey(t *testing.T) {
	a := testBox(t)
	b := testBox(t)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestNewSecretBox_ValidatesKey(t *testing.T) {
	_, err := NewSecretBox("short")
	assert.Error(t, err)

	_, err = NewSecretBox(strings.Repeat("zz", 32))
	assert.Error(t, err)
}
