package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads and updates outbox rows for the worker. All row leasing happens
// inside one transaction via FOR UPDATE SKIP LOCKED, so multiple workers can
// poll the same table without stepping on each other.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewStore builds a store; maxRetries caps delivery attempts before a row is
// parked for operator inspection.
func NewStore(pool *pgxpool.Pool, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Store{pool: pool, maxRetries: maxRetries}
}

const selectColumns = `id, aggregate_id, aggregate_type, event_type, payload,
	organization_id, occurred_at, scheduled_at, processed_at, retry_count, COALESCE(last_error, '')`

func scanRow(scanner interface{ Scan(...any) error }) (Row, error) {
	var r Row
	err := scanner.Scan(
		&r.ID, &r.AggregateID, &r.AggregateType, &r.EventType, &r.Payload,
		&r.OrganizationID, &r.OccurredAt, &r.ScheduledAt, &r.ProcessedAt,
		&r.RetryCount, &r.LastError,
	)
	return r, err
}

// Lease opens a transaction and locks up to limit deliverable rows in
// occurred_at order. The caller must finish the batch and commit promptly;
// locks are never held across batches.
func (s *Store) Lease(ctx context.Context, limit int) (pgx.Tx, []Row, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin lease: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+selectColumns+`
		FROM shared.outbox_events
		WHERE processed_at IS NULL
		  AND (scheduled_at IS NULL OR scheduled_at <= now())
		  AND retry_count < $1
		ORDER BY occurred_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, s.maxRetries, limit)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, fmt.Errorf("lease outbox rows: %w", err)
	}
	defer rows.Close()

	var batch []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, nil, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, fmt.Errorf("read outbox rows: %w", err)
	}
	return tx, batch, nil
}

// MarkProcessed stamps a delivered row inside the lease transaction.
func (s *Store) MarkProcessed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx,
		"UPDATE shared.outbox_events SET processed_at = now() WHERE id = $1", id)
	return err
}

// MarkFailed increments the retry counter, records the error, and reschedules
// with exponential backoff capped at one hour. After maxRetries the row no
// longer matches the poll predicate and is effectively parked.
func (s *Store) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, retryCount int, cause error) error {
	delay := Backoff(retryCount)
	_, err := tx.Exec(ctx, `
		UPDATE shared.outbox_events
		SET retry_count = retry_count + 1,
		    last_error = $2,
		    scheduled_at = now() + $3::interval
		WHERE id = $1
	`, id, cause.Error(), fmt.Sprintf("%d seconds", int(delay.Seconds())))
	return err
}

// Backoff computes min(2^retryCount, 3600) seconds.
func Backoff(retryCount int) time.Duration {
	if retryCount >= 12 {
		return time.Hour
	}
	d := time.Duration(1<<uint(retryCount)) * time.Second
	if d > time.Hour {
		return time.Hour
	}
	return d
}

// Parked returns rows that exhausted their retries; the ops query.
func (s *Store) Parked(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM shared.outbox_events
		WHERE processed_at IS NULL AND retry_count >= $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`, s.maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("query parked rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
