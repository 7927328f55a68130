package domain

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event raised by an aggregate during a business operation.
// Events are drained by the unit of work and written to the outbox in the same
// transaction as the mutation that produced them.
type Event interface {
	EventAggregateID() uuid.UUID
	EventAggregateType() string
	EventOrganizationID() uuid.UUID // uuid.Nil for tenant-less events
	EventOccurredAt() time.Time
}

// EventName derives the outbox event_type from the concrete struct name.
func EventName(e Event) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	AggregateID    uuid.UUID `json:"aggregate_id"`
	AggregateType  string    `json:"aggregate_type"`
	OrganizationID uuid.UUID `json:"organization_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventAggregateID() uuid.UUID    { return e.AggregateID }
func (e BaseEvent) EventAggregateType() string     { return e.AggregateType }
func (e BaseEvent) EventOrganizationID() uuid.UUID { return e.OrganizationID }
func (e BaseEvent) EventOccurredAt() time.Time     { return e.OccurredAt }

func newBaseEvent(aggregateID, orgID uuid.UUID, aggregateType string) BaseEvent {
	return BaseEvent{
		AggregateID:    aggregateID,
		AggregateType:  aggregateType,
		OrganizationID: orgID,
		OccurredAt:     time.Now().UTC(),
	}
}

// AggregateRoot collects pending events for an entity cluster. Embed by value;
// the pending list is private and only reachable via Raise and DrainEvents.
type AggregateRoot struct {
	pending []Event
}

// Raise appends an event to the pending list.
func (a *AggregateRoot) Raise(e Event) {
	a.pending = append(a.pending, e)
}

// DrainEvents returns the pending events and clears the list. Draining twice
// yields nothing the second time, so an aggregate may be tracked repeatedly
// without duplicating outbox rows.
func (a *AggregateRoot) DrainEvents() []Event {
	events := a.pending
	a.pending = nil
	return events
}

// HasPendingEvents reports whether any events await drainage.
func (a *AggregateRoot) HasPendingEvents() bool { return len(a.pending) > 0 }

// Identity events.

type UserRegistered struct {
	BaseEvent
	Email string `json:"email"`
}

type UserLoggedIn struct {
	BaseEvent
	Email string `json:"email"`
	IP    string `json:"ip,omitempty"`
}

type UserLockedOut struct {
	BaseEvent
	UnlockAt time.Time `json:"unlock_at"`
}

type UserEmailVerified struct {
	BaseEvent
}

type UserPasswordChanged struct {
	BaseEvent
}

type UserDeactivated struct {
	BaseEvent
}

type RoleAssigned struct {
	BaseEvent
	RoleID    uuid.UUID `json:"role_id"`
	GrantedBy uuid.UUID `json:"granted_by"`
}

type RoleRevoked struct {
	BaseEvent
	RoleID uuid.UUID `json:"role_id"`
}

type OrganizationCreated struct {
	BaseEvent
	Slug string `json:"slug"`
}

type OrganizationDeactivated struct {
	BaseEvent
}

// Messaging events.

type ChannelCreated struct {
	BaseEvent
	PhoneNumberID string `json:"phone_number_id"`
}

type ChannelDeactivated struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}

type ChannelSuspended struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}

type MessageSendRequested struct {
	BaseEvent
	ChannelID uuid.UUID `json:"channel_id"`
	ToPhone   string    `json:"to_phone"`
}

type MessageStatusChanged struct {
	BaseEvent
	From MessageStatus `json:"from"`
	To   MessageStatus `json:"to"`
}

type InboundMessageReceived struct {
	BaseEvent
	ChannelID uuid.UUID `json:"channel_id"`
	FromPhone string    `json:"from_phone"`
}

type TemplateSubmitted struct {
	BaseEvent
	Name     string `json:"name"`
	Language string `json:"language"`
}

type TemplateStatusChanged struct {
	BaseEvent
	Status TemplateStatus `json:"status"`
}
