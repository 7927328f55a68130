package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmail(t *testing.T) {
	email, err := NewEmail("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email.String())

	for _, bad := range []string{"", "not-an-email", "a@", "@b.com", "a b@c.com"} {
		_, err := NewEmail(bad)
		assert.True(t, IsCode(err, CodeValidationError), "expected validation error for %q", bad)
	}
}

func TestNewPhone(t *testing.T) {
	phone, err := NewPhone("+1 (555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "15551234567", phone.String())

	phone, err = NewPhone("5215512345678")
	require.NoError(t, err)
	assert.Equal(t, "5215512345678", phone.String())

	for _, bad := range []string{"", "0123456", "12345", "abc", "+"} {
		_, err := NewPhone(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestPasswordHash_NeverLeaks(t *testing.T) {
	h := PasswordHash("$argon2id$secret")

	assert.Equal(t, "[REDACTED]", h.String())

	out, err := json.Marshal(struct {
		Hash PasswordHash `json:"hash"`
	}{Hash: h})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hash":"[REDACTED]"}`, string(out))
}

func TestNewPermission(t *testing.T) {
	p, err := NewPermission("messages:send")
	require.NoError(t, err)
	assert.Equal(t, "messages", p.Resource())
	assert.Equal(t, "send", p.Action())

	for _, bad := range []string{"", "messages", "Messages:send", "messages:send:extra", "messages:*"} {
		_, err := NewPermission(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestUnionPermissions(t *testing.T) {
	got := UnionPermissions(
		[]Permission{"messages:send", "messages:read"},
		[]Permission{"messages:read", "channels:read"},
	)
	assert.Equal(t, []Permission{"messages:send", "messages:read", "channels:read"}, got)
}

func TestNewSlug(t *testing.T) {
	slug, err := NewSlug("  Acme-Corp ")
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", slug)

	for _, bad := range []string{"", "a", "-leading", "trailing-", "double--dash", "has_underscore", "Ümlaut"} {
		_, err := NewSlug(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}
