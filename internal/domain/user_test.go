package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T) *User {
	t.Helper()
	email, err := NewEmail("user@example.com")
	require.NoError(t, err)
	u, err := NewUser(uuid.New(), email, PasswordHash("$argon2id$hash"), "Test User")
	require.NoError(t, err)
	u.DrainEvents()
	return u
}

func TestNewUser_Validation(t *testing.T) {
	email, _ := NewEmail("user@example.com")

	_, err := NewUser(uuid.Nil, email, "hash", "name")
	assert.True(t, IsCode(err, CodeValidationError))

	_, err = NewUser(uuid.New(), email, "", "name")
	assert.True(t, IsCode(err, CodeValidationError))
}

func TestNewUser_RaisesRegistered(t *testing.T) {
	email, _ := NewEmail("user@example.com")
	u, err := NewUser(uuid.New(), email, "hash", "name")
	require.NoError(t, err)

	events := u.DrainEvents()
	require.Len(t, events, 1)
	_, ok := events[0].(UserRegistered)
	assert.True(t, ok)
	assert.True(t, u.IsActive)
	assert.False(t, u.EmailVerified)
}

func TestRecordFailedLogin_LocksAtThreshold(t *testing.T) {
	u := newTestUser(t)

	for i := 0; i < 4; i++ {
		u.RecordFailedLogin(5, 15*time.Minute)
		assert.False(t, u.IsLocked(time.Now()), "attempt %d must not lock", i+1)
	}
	assert.Equal(t, 4, u.FailedLoginAttempts)
	assert.Empty(t, u.DrainEvents())

	u.RecordFailedLogin(5, 15*time.Minute)
	assert.True(t, u.IsLocked(time.Now()))
	assert.Zero(t, u.FailedLoginAttempts, "counter resets when the window opens")

	events := u.DrainEvents()
	require.Len(t, events, 1)
	locked, ok := events[0].(UserLockedOut)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), locked.UnlockAt, 5*time.Second)
}

func TestIsLocked_WindowExpires(t *testing.T) {
	u := newTestUser(t)
	past := time.Now().Add(-time.Minute)
	u.LockedUntil = &past

	assert.False(t, u.IsLocked(time.Now()))
}

func TestRecordSuccessfulLogin_ClearsLockout(t *testing.T) {
	u := newTestUser(t)
	u.FailedLoginAttempts = 3
	until := time.Now().Add(time.Hour)
	u.LockedUntil = &until

	u.RecordSuccessfulLogin("203.0.113.9")

	assert.Zero(t, u.FailedLoginAttempts)
	assert.Nil(t, u.LockedUntil)
	require.NotNil(t, u.LastLoginAt)

	events := u.DrainEvents()
	require.Len(t, events, 1)
	assert.IsType(t, UserLoggedIn{}, events[0])
}

func TestChangePassword(t *testing.T) {
	u := newTestUser(t)
	u.FailedLoginAttempts = 2

	require.NoError(t, u.ChangePassword("$argon2id$new"))
	assert.Equal(t, PasswordHash("$argon2id$new"), u.PasswordHash)
	assert.Zero(t, u.FailedLoginAttempts)

	err := u.ChangePassword("")
	assert.True(t, IsCode(err, CodeValidationError))
}

func TestVerifyEmail_Idempotent(t *testing.T) {
	u := newTestUser(t)

	u.VerifyEmail()
	u.VerifyEmail()

	assert.True(t, u.EmailVerified)
	assert.Len(t, u.DrainEvents(), 1)
}

func TestDeactivate_Idempotent(t *testing.T) {
	u := newTestUser(t)

	u.Deactivate()
	u.Deactivate()

	assert.False(t, u.IsActive)
	assert.Len(t, u.DrainEvents(), 1)
}
