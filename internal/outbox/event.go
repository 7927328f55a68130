// Package outbox implements the transactional outbox: domain events are
// written in the same transaction as the business mutation that raised them,
// then delivered at-least-once by a polling worker.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Row is one durable outbox event.
type Row struct {
	ID             uuid.UUID
	AggregateID    uuid.UUID
	AggregateType  string
	EventType      string
	Payload        json.RawMessage
	OrganizationID *uuid.UUID
	OccurredAt     time.Time
	ScheduledAt    *time.Time
	ProcessedAt    *time.Time
	RetryCount     int
	LastError      string
}

// Publish serializes events and inserts them with the caller's transaction.
// A serialization failure aborts the whole transaction; the business mutation
// and its events commit or roll back together.
func Publish(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("serialize event %s: %w", domain.EventName(e), err)
		}

		var orgID any
		if id := e.EventOrganizationID(); id != uuid.Nil {
			orgID = id
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO shared.outbox_events
				(id, aggregate_id, aggregate_type, event_type, payload, organization_id, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), e.EventAggregateID(), e.EventAggregateType(), domain.EventName(e), payload, orgID, e.EventOccurredAt().UTC())
		if err != nil {
			return fmt.Errorf("insert outbox event %s: %w", domain.EventName(e), err)
		}
	}
	return nil
}
