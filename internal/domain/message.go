package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageDirection discriminates traffic direction.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageType is the payload kind.
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageTemplate    MessageType = "template"
	MessageMedia       MessageType = "media"
	MessageInteractive MessageType = "interactive"
)

// MessageStatus is the delivery state machine.
type MessageStatus string

const (
	StatusQueued    MessageStatus = "queued"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// legalTransitions encodes the FSM. read and failed are terminal.
var legalTransitions = map[MessageStatus][]MessageStatus{
	StatusQueued:    {StatusSent, StatusFailed},
	StatusSent:      {StatusDelivered, StatusFailed},
	StatusDelivered: {StatusRead},
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to MessageStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Message is one inbound or outbound WhatsApp message. Rows are partitioned
// by created_at.
type Message struct {
	AggregateRoot

	ID                uuid.UUID
	OrganizationID    uuid.UUID
	ChannelID         uuid.UUID
	Direction         MessageDirection
	Type              MessageType
	FromPhone         Phone
	ToPhone           Phone
	Content           json.RawMessage
	ContentHash       string
	Status            MessageStatus
	WhatsAppMessageID string
	RetryCount        int
	ErrorCode         string
	CreatedAt         time.Time
	StatusUpdatedAt   time.Time
	DeliveredAt       *time.Time
}

// HashContent produces the idempotency hash for an outbound payload.
func HashContent(channelID uuid.UUID, to Phone, content json.RawMessage) string {
	h := sha256.New()
	h.Write(channelID[:])
	h.Write([]byte(to))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// NewOutboundMessage queues a message and raises MessageSendRequested.
func NewOutboundMessage(orgID, channelID uuid.UUID, msgType MessageType, from, to Phone, content json.RawMessage) (*Message, error) {
	if len(content) == 0 {
		return nil, E(CodeValidationError, "message content is required")
	}
	switch msgType {
	case MessageText, MessageTemplate, MessageMedia, MessageInteractive:
	default:
		return nil, E(CodeValidationError, "unknown message type")
	}

	now := time.Now().UTC()
	m := &Message{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		ChannelID:       channelID,
		Direction:       DirectionOutbound,
		Type:            msgType,
		FromPhone:       from,
		ToPhone:         to,
		Content:         content,
		ContentHash:     HashContent(channelID, to, content),
		Status:          StatusQueued,
		CreatedAt:       now,
		StatusUpdatedAt: now,
	}
	m.Raise(MessageSendRequested{
		BaseEvent: newBaseEvent(m.ID, orgID, "message"),
		ChannelID: channelID,
		ToPhone:   to.String(),
	})
	return m, nil
}

// NewInboundMessage records a received message, already delivered by nature.
func NewInboundMessage(orgID, channelID uuid.UUID, msgType MessageType, from, to Phone, content json.RawMessage, providerID string) *Message {
	now := time.Now().UTC()
	m := &Message{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		ChannelID:         channelID,
		Direction:         DirectionInbound,
		Type:              msgType,
		FromPhone:         from,
		ToPhone:           to,
		Content:           content,
		Status:            StatusDelivered,
		WhatsAppMessageID: providerID,
		CreatedAt:         now,
		StatusUpdatedAt:   now,
		DeliveredAt:       &now,
	}
	m.Raise(InboundMessageReceived{
		BaseEvent: newBaseEvent(m.ID, orgID, "message"),
		ChannelID: channelID,
		FromPhone: from.String(),
	})
	return m
}

// Transition advances the FSM, raising MessageStatusChanged.
func (m *Message) Transition(to MessageStatus) error {
	if !CanTransition(m.Status, to) {
		return E(CodeConflict, "illegal message status transition").
			WithDetail("from", string(m.Status)).
			WithDetail("to", string(to))
	}
	from := m.Status
	now := time.Now().UTC()
	m.Status = to
	m.StatusUpdatedAt = now
	if to == StatusDelivered {
		m.DeliveredAt = &now
	}
	m.Raise(MessageStatusChanged{
		BaseEvent: newBaseEvent(m.ID, m.OrganizationID, "message"),
		From:      from,
		To:        to,
	})
	return nil
}

// MarkSent records the provider message id alongside the transition.
func (m *Message) MarkSent(providerID string) error {
	if err := m.Transition(StatusSent); err != nil {
		return err
	}
	m.WhatsAppMessageID = providerID
	return nil
}

// MarkFailed records the provider error code alongside the transition.
func (m *Message) MarkFailed(errorCode string) error {
	if err := m.Transition(StatusFailed); err != nil {
		return err
	}
	m.ErrorCode = errorCode
	return nil
}

// Requeue puts a failed message back into the queue for a retry endpoint.
func (m *Message) Requeue() error {
	if m.Status != StatusFailed {
		return E(CodeConflict, "only failed messages can be retried")
	}
	now := time.Now().UTC()
	m.Status = StatusQueued
	m.ErrorCode = ""
	m.StatusUpdatedAt = now
	m.Raise(MessageSendRequested{
		BaseEvent: newBaseEvent(m.ID, m.OrganizationID, "message"),
		ChannelID: m.ChannelID,
		ToPhone:   m.ToPhone.String(),
	})
	return nil
}
