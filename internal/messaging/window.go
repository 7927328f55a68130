package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/redis/go-redis/v9"
)

// serviceWindowTTL is the customer-service window: free-form messages may only
// be sent within this long of the customer's last inbound message.
const serviceWindowTTL = 24 * time.Hour

// ServiceWindow tracks when each customer last wrote in. The hot path is a
// Redis marker with a 24h TTL; a cold cache falls back to the messages table
// and re-warms the marker with the remaining lifetime.
type ServiceWindow struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewServiceWindow(rdb *redis.Client, logger *slog.Logger) *ServiceWindow {
	return &ServiceWindow{rdb: rdb, logger: logger.With("component", "service_window")}
}

func windowKey(orgID uuid.UUID, customer domain.Phone) string {
	return fmt.Sprintf("svcwindow:%s:%s", orgID, customer)
}

// MarkInbound refreshes the window when a customer message arrives. A Redis
// failure is logged and swallowed; the database fallback still answers.
func (w *ServiceWindow) MarkInbound(ctx context.Context, orgID uuid.UUID, customer domain.Phone, at time.Time) {
	err := w.rdb.Set(ctx, windowKey(orgID, customer), at.UTC().Format(time.RFC3339), serviceWindowTTL).Err()
	if err != nil {
		w.logger.Warn("failed to mark service window", "organization_id", orgID, "error", err)
	}
}

// Open reports whether the service window is open for the customer. The
// repository must belong to a unit of work already scoped to the organization.
func (w *ServiceWindow) Open(ctx context.Context, uow *storage.UnitOfWork, orgID uuid.UUID, customer domain.Phone) (bool, error) {
	now := time.Now().UTC()

	val, err := w.rdb.Get(ctx, windowKey(orgID, customer)).Result()
	if err == nil {
		last, parseErr := time.Parse(time.RFC3339, val)
		if parseErr == nil {
			return now.Sub(last) < serviceWindowTTL, nil
		}
	} else if err != redis.Nil {
		w.logger.Warn("service window cache unavailable", "error", err)
	}

	last, err := uow.Messages().LastInboundAt(ctx, orgID, customer)
	if err != nil {
		return false, err
	}
	if last.IsZero() || now.Sub(last) >= serviceWindowTTL {
		return false, nil
	}

	// Re-warm with the remaining lifetime, not a fresh 24h.
	remaining := serviceWindowTTL - now.Sub(last)
	if err := w.rdb.Set(ctx, windowKey(orgID, customer), last.UTC().Format(time.RFC3339), remaining).Err(); err != nil {
		w.logger.Warn("failed to re-warm service window", "error", err)
	}
	return true, nil
}
