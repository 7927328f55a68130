package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	ch, err := NewChannel(uuid.New(), "1234567890", Phone("15550000001"),
		"enc:access", "enc:webhook", 0, 1000)
	require.NoError(t, err)
	ch.DrainEvents()
	return ch
}

func TestNewChannel(t *testing.T) {
	ch := newTestChannel(t)
	assert.True(t, ch.IsActive)
	assert.Equal(t, DefaultRateLimitPerSecond, ch.RateLimitPerSecond)
	assert.Equal(t, time.Now().UTC().Format("2006-01"), ch.UsagePeriod)

	_, err := NewChannel(uuid.New(), "", Phone("1"), "a", "b", 0, 0)
	assert.True(t, IsCode(err, CodeValidationError))

	_, err = NewChannel(uuid.New(), "123", Phone("1"), "", "b", 0, 0)
	assert.True(t, IsCode(err, CodeValidationError))
}

func TestCanSend(t *testing.T) {
	now := time.Now()

	ch := newTestChannel(t)
	assert.NoError(t, ch.CanSend(now))

	ch.IsActive = false
	assert.True(t, IsCode(ch.CanSend(now), CodeForbidden))

	ch = newTestChannel(t)
	ch.IsSuspended = true
	assert.True(t, IsCode(ch.CanSend(now), CodeForbidden))

	ch = newTestChannel(t)
	ch.MessagesThisMonth = 1000
	assert.True(t, IsCode(ch.CanSend(now), CodeRateLimited))

	// Zero monthly limit means unlimited.
	ch = newTestChannel(t)
	ch.MonthlyMessageLimit = 0
	ch.MessagesThisMonth = 1 << 40
	assert.NoError(t, ch.CanSend(now))
}

func TestRecordOutbound_MonthRollover(t *testing.T) {
	ch := newTestChannel(t)
	ch.UsagePeriod = "2026-07"
	ch.MessagesThisMonth = 999

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	ch.RecordOutbound(now)

	assert.Equal(t, "2026-08", ch.UsagePeriod)
	assert.Equal(t, int64(1), ch.MessagesThisMonth)

	ch.RecordOutbound(now)
	assert.Equal(t, int64(2), ch.MessagesThisMonth)
}

func TestChannelDeactivateAndSuspend_Idempotent(t *testing.T) {
	ch := newTestChannel(t)

	ch.Deactivate("token rejected")
	ch.Deactivate("token rejected")
	assert.False(t, ch.IsActive)
	assert.Len(t, ch.DrainEvents(), 1)

	ch.Suspend("account suspended")
	ch.Suspend("account suspended")
	assert.True(t, ch.IsSuspended)
	assert.Len(t, ch.DrainEvents(), 1)
}
