package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/crypto"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/ratelimit"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SendService runs the outbound pipeline. Queueing is synchronous and
// transactional; actual provider delivery happens asynchronously off the
// outbox, so a provider outage never blocks the API.
type SendService struct {
	pool     *pgxpool.Pool
	limiter  *ratelimit.Limiter
	window   *ServiceWindow
	provider whatsapp.Provider
	box      *crypto.SecretBox
	logger   *slog.Logger
}

func NewSendService(pool *pgxpool.Pool, limiter *ratelimit.Limiter, window *ServiceWindow, provider whatsapp.Provider, box *crypto.SecretBox, logger *slog.Logger) *SendService {
	return &SendService{
		pool:     pool,
		limiter:  limiter,
		window:   window,
		provider: provider,
		box:      box,
		logger:   logger.With("component", "send"),
	}
}

// SendInput is one outbound message request.
type SendInput struct {
	ChannelID uuid.UUID
	To        string
	Type      domain.MessageType
	Content   json.RawMessage
}

// Send validates, gates, and queues one outbound message. Returns the queued
// message; a duplicate of a recent send returns the original instead of
// queueing twice.
func (s *SendService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	to, err := domain.NewPhone(in.To)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		ch, err := uow.Channels().GetByID(ctx, in.ChannelID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := ch.CanSend(now); err != nil {
			return err
		}

		if throttled, until, err := s.limiter.Throttled(ctx, ch.ID); err != nil {
			s.logger.Warn("throttle check failed, proceeding", "error", err)
		} else if throttled {
			return domain.E(domain.CodeRateLimited, "channel is throttled by the provider").
				WithDetail("retry_at", until.UTC().Format(time.RFC3339))
		}

		decision, err := s.limiter.Allow(ctx, ch.ID, ch.RateLimitPerSecond)
		if err != nil {
			// Redis down: fail open, the provider enforces its own limit.
			s.logger.Warn("token bucket unavailable, proceeding", "error", err)
		} else if !decision.Allowed {
			return domain.E(domain.CodeRateLimited, "channel rate limit exceeded").
				WithDetail("retry_after_ms", strconv.FormatInt(decision.RetryAfter.Milliseconds(), 10))
		}

		// Free-form messages require an open service window; templates are
		// exempt, that is what templates are for.
		if in.Type != domain.MessageTemplate {
			open, err := s.window.Open(ctx, uow, tc.TenantID, to)
			if err != nil {
				return err
			}
			if !open {
				return domain.E(domain.CodeForbidden, "service window closed, use a template message")
			}
		}

		hash := domain.HashContent(ch.ID, to, in.Content)
		if existing, err := uow.Messages().GetByContentHash(ctx, ch.ID, hash); err == nil {
			if time.Since(existing.CreatedAt) < 24*time.Hour {
				msg = existing
				return nil
			}
		} else if !storage.IsNotFound(err) {
			return err
		}

		msg, err = domain.NewOutboundMessage(tc.TenantID, ch.ID, in.Type, ch.BusinessPhone, to, in.Content)
		if err != nil {
			return err
		}
		if err := uow.Messages().Add(ctx, msg); err != nil {
			return err
		}

		ch.RecordOutbound(now)
		if err := uow.Channels().Update(ctx, ch.ID, ch); err != nil {
			return err
		}

		uow.Track(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// BulkResult reports one recipient's outcome in a bulk send.
type BulkResult struct {
	To        string     `json:"to"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// SendBulk queues the same payload for many recipients. Each recipient is an
// independent pipeline run: one rejection never aborts the rest.
func (s *SendService) SendBulk(ctx context.Context, channelID uuid.UUID, recipients []string, msgType domain.MessageType, content json.RawMessage) ([]BulkResult, error) {
	if len(recipients) == 0 {
		return nil, domain.E(domain.CodeValidationError, "recipients list is empty")
	}
	if len(recipients) > 1000 {
		return nil, domain.E(domain.CodeValidationError, "at most 1000 recipients per bulk send")
	}

	results := make([]BulkResult, 0, len(recipients))
	for _, to := range recipients {
		msg, err := s.Send(ctx, SendInput{ChannelID: channelID, To: to, Type: msgType, Content: content})
		if err != nil {
			results = append(results, BulkResult{To: to, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{To: to, MessageID: &msg.ID})
	}
	return results, nil
}

// Retry requeues a failed message.
func (s *SendService) Retry(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		msg, err = uow.Messages().GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if err := msg.Requeue(); err != nil {
			return err
		}
		msg.RetryCount++
		if err := uow.Messages().Update(ctx, msg.ID, msg); err != nil {
			return err
		}
		uow.Track(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage fetches one message of the caller's organization.
func (s *SendService) GetMessage(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		msg, err = uow.Messages().GetByID(ctx, messageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages pages messages, optionally filtered by channel, direction, and
// status.
func (s *SendService) ListMessages(ctx context.Context, channelID *uuid.UUID, direction, status string, skip, limit int) ([]*domain.Message, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	filters := storage.Filters{}
	if channelID != nil {
		filters["channel_id"] = *channelID
	}
	if direction != "" {
		filters["direction"] = direction
	}
	if status != "" {
		filters["status"] = status
	}

	var msgs []*domain.Message
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		msgs, err = uow.Messages().ListByOrganization(ctx, tc.TenantID, filters, skip, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
