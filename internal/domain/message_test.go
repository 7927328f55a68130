package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueuedMessage(t *testing.T) *Message {
	t.Helper()
	m, err := NewOutboundMessage(uuid.New(), uuid.New(), MessageText,
		Phone("15550000001"), Phone("15550000002"), json.RawMessage(`{"body":"hi"}`))
	require.NoError(t, err)
	m.DrainEvents()
	return m
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to MessageStatus }{
		{StatusQueued, StatusSent},
		{StatusQueued, StatusFailed},
		{StatusSent, StatusDelivered},
		{StatusSent, StatusFailed},
		{StatusDelivered, StatusRead},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct{ from, to MessageStatus }{
		{StatusQueued, StatusDelivered},
		{StatusQueued, StatusRead},
		{StatusSent, StatusQueued},
		{StatusDelivered, StatusSent},
		{StatusDelivered, StatusFailed},
		{StatusRead, StatusDelivered},
		{StatusFailed, StatusSent},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNewOutboundMessage(t *testing.T) {
	orgID, channelID := uuid.New(), uuid.New()
	m, err := NewOutboundMessage(orgID, channelID, MessageText,
		Phone("15550000001"), Phone("15550000002"), json.RawMessage(`{"body":"hi"}`))
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, m.Status)
	assert.Equal(t, DirectionOutbound, m.Direction)
	assert.NotEmpty(t, m.ContentHash)

	events := m.DrainEvents()
	require.Len(t, events, 1)
	assert.IsType(t, MessageSendRequested{}, events[0])

	_, err = NewOutboundMessage(orgID, channelID, MessageText,
		Phone("1"), Phone("2"), nil)
	assert.True(t, IsCode(err, CodeValidationError))

	_, err = NewOutboundMessage(orgID, channelID, MessageType("sticker"),
		Phone("1"), Phone("2"), json.RawMessage(`{}`))
	assert.True(t, IsCode(err, CodeValidationError))
}

func TestHashContent_Deterministic(t *testing.T) {
	channelID := uuid.New()
	to := Phone("15550000002")
	content := json.RawMessage(`{"body":"hi"}`)

	assert.Equal(t, HashContent(channelID, to, content), HashContent(channelID, to, content))
	assert.NotEqual(t, HashContent(channelID, to, content),
		HashContent(channelID, to, json.RawMessage(`{"body":"bye"}`)))
	assert.NotEqual(t, HashContent(channelID, to, content),
		HashContent(uuid.New(), to, content))
}

func TestMarkSent_ThenDelivered(t *testing.T) {
	m := newQueuedMessage(t)

	require.NoError(t, m.MarkSent("wamid.123"))
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, "wamid.123", m.WhatsAppMessageID)

	require.NoError(t, m.Transition(StatusDelivered))
	require.NotNil(t, m.DeliveredAt)

	require.NoError(t, m.Transition(StatusRead))
	err := m.Transition(StatusDelivered)
	assert.True(t, IsCode(err, CodeConflict))
}

func TestMarkFailed_Terminal(t *testing.T) {
	m := newQueuedMessage(t)

	require.NoError(t, m.MarkFailed("131026"))
	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, "131026", m.ErrorCode)

	err := m.Transition(StatusSent)
	assert.True(t, IsCode(err, CodeConflict))
}

func TestRequeue(t *testing.T) {
	m := newQueuedMessage(t)

	err := m.Requeue()
	assert.True(t, IsCode(err, CodeConflict), "queued messages cannot be requeued")

	require.NoError(t, m.MarkFailed("131026"))
	m.DrainEvents()

	require.NoError(t, m.Requeue())
	assert.Equal(t, StatusQueued, m.Status)
	assert.Empty(t, m.ErrorCode)

	events := m.DrainEvents()
	require.Len(t, events, 1)
	assert.IsType(t, MessageSendRequested{}, events[0])
}

func TestNewInboundMessage(t *testing.T) {
	m := NewInboundMessage(uuid.New(), uuid.New(), MessageText,
		Phone("15550000002"), Phone("15550000001"), json.RawMessage(`{"body":"hello"}`), "wamid.in")

	assert.Equal(t, DirectionInbound, m.Direction)
	assert.Equal(t, StatusDelivered, m.Status)
	assert.Equal(t, "wamid.in", m.WhatsAppMessageID)
	require.NotNil(t, m.DeliveredAt)

	events := m.DrainEvents()
	require.Len(t, events, 1)
	assert.IsType(t, InboundMessageReceived{}, events[0])
}
