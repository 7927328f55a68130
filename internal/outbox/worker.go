package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

// Handler processes one delivered event. Handlers must be idempotent: the
// outbox delivers at least once and a crash between handling and marking can
// replay a row.
type Handler func(ctx context.Context, row Row) error

// Worker polls the outbox and dispatches rows to registered handlers. Events
// with no handler are marked processed immediately so unrouted event types
// never clog the queue.
type Worker struct {
	store    *Store
	logger   *slog.Logger
	interval time.Duration
	batch    int
	handlers map[string]Handler
}

// NewWorker wires a polling worker. Register handlers before Run.
func NewWorker(store *Store, logger *slog.Logger, interval time.Duration, batch int) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Worker{
		store:    store,
		logger:   logger.With("component", "outbox_worker"),
		interval: interval,
		batch:    batch,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to an event type name.
func (w *Worker) Register(eventType string, h Handler) {
	w.handlers[eventType] = h
}

// Run polls until the context is cancelled. The in-flight batch always
// finishes before Run returns, so shutdown never strands half-marked rows.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("outbox worker started",
		"poll_interval", w.interval.String(), "batch_size", w.batch)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("outbox poll failed", "error", err)
				sentry.CaptureException(err)
			}
		}
	}
}

// drain keeps leasing batches until the queue is momentarily empty, so a
// backlog clears at batch speed instead of one batch per tick.
func (w *Worker) drain(ctx context.Context) error {
	for {
		n, err := w.processBatch(ctx)
		if err != nil {
			return err
		}
		if n < w.batch {
			return nil
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) (int, error) {
	tx, rows, err := w.store.Lease(ctx, w.batch)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		_ = tx.Rollback(ctx)
		return 0, nil
	}

	for _, row := range rows {
		if err := w.dispatch(ctx, row); err != nil {
			w.logger.Warn("event delivery failed",
				"event_id", row.ID,
				"event_type", row.EventType,
				"retry_count", row.RetryCount,
				"error", err)
			if row.RetryCount+1 >= w.store.maxRetries {
				w.logger.Error("event parked after max retries",
					"event_id", row.ID, "event_type", row.EventType)
				sentry.CaptureException(fmt.Errorf("outbox event %s parked: %w", row.ID, err))
			}
			if markErr := w.store.MarkFailed(ctx, tx, row.ID, row.RetryCount, err); markErr != nil {
				_ = tx.Rollback(ctx)
				return 0, fmt.Errorf("mark failed %s: %w", row.ID, markErr)
			}
			continue
		}
		if err := w.store.MarkProcessed(ctx, tx, row.ID); err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("mark processed %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return len(rows), nil
}

func (w *Worker) dispatch(ctx context.Context, row Row) error {
	h, ok := w.handlers[row.EventType]
	if !ok {
		return nil
	}
	if row.OrganizationID != nil {
		ctx = withEventOrg(ctx, *row.OrganizationID)
	}
	return h(ctx, row)
}

type eventOrgKey struct{}

func withEventOrg(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, eventOrgKey{}, orgID)
}

// EventOrg returns the organization an event belongs to, when it has one.
func EventOrg(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(eventOrgKey{}).(uuid.UUID)
	return id, ok
}
