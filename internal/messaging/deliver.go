package messaging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/outbox"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
)

// providerThrottlePause is how long a channel pauses after the provider
// reports a rate-limit code.
const providerThrottlePause = time.Minute

// HandleSendRequested is the outbox handler for queued outbound messages.
// Returning an error reschedules the row with backoff; permanent provider
// rejections are recorded on the message and consume the row.
func (s *SendService) HandleSendRequested(ctx context.Context, row outbox.Row) error {
	orgID, ok := outbox.EventOrg(ctx)
	if !ok {
		return fmt.Errorf("send event %s carries no organization", row.ID)
	}
	return s.deliver(ctx, orgID, row.AggregateID)
}

func (s *SendService) deliver(ctx context.Context, orgID, messageID uuid.UUID) error {
	return storage.WithTenant(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		msg, err := uow.Messages().GetByID(ctx, messageID)
		if err != nil {
			if storage.IsNotFound(err) {
				// Row outlived its message; consume it.
				return nil
			}
			return err
		}
		if msg.Status != domain.StatusQueued {
			// Redelivered event, already handled.
			return nil
		}

		ch, err := uow.Channels().GetByID(ctx, msg.ChannelID)
		if err != nil {
			return err
		}
		if !ch.IsActive || ch.IsSuspended {
			return s.recordFailure(ctx, uow, msg, "channel_unavailable")
		}

		if throttled, until, err := s.limiter.Throttled(ctx, ch.ID); err == nil && throttled {
			return fmt.Errorf("channel %s throttled until %s", ch.ID, until.UTC().Format(time.RFC3339))
		}

		token, err := s.box.Open(ch.EncryptedAccessToken)
		if err != nil {
			s.logger.Error("channel credentials unreadable", "channel_id", ch.ID, "error", err)
			return s.recordFailure(ctx, uow, msg, "credentials_unreadable")
		}

		providerID, err := s.provider.SendMessage(ctx, token, ch.PhoneNumberID, whatsapp.SendPayload{
			To:      msg.ToPhone.String(),
			Type:    string(msg.Type),
			Content: msg.Content,
		})
		if err != nil {
			return s.handleProviderError(ctx, uow, ch, msg, err)
		}

		if err := msg.MarkSent(providerID); err != nil {
			return err
		}
		if err := uow.Messages().Update(ctx, msg.ID, msg); err != nil {
			return err
		}
		uow.Track(msg)
		return nil
	})
}

// handleProviderError applies the provider error policy: rate-limit codes
// pause the channel and retry, auth codes deactivate it, suspension codes
// suspend it, anything else fails the message permanently. Transport errors
// bubble up for the outbox to retry.
func (s *SendService) handleProviderError(ctx context.Context, uow *storage.UnitOfWork, ch *domain.Channel, msg *domain.Message, sendErr error) error {
	apiErr, ok := whatsapp.AsAPIError(sendErr)
	if !ok {
		return sendErr
	}

	switch {
	case whatsapp.IsRateLimited(apiErr.Code):
		if err := s.limiter.Throttle(ctx, ch.ID, time.Now().Add(providerThrottlePause)); err != nil {
			s.logger.Warn("failed to throttle channel", "channel_id", ch.ID, "error", err)
		}
		return sendErr

	case whatsapp.IsAuthError(apiErr.Code):
		ch.Deactivate("provider rejected access token")
		if err := uow.Channels().Update(ctx, ch.ID, ch); err != nil {
			return err
		}
		uow.Track(ch)
		return s.recordFailure(ctx, uow, msg, strconv.Itoa(apiErr.Code))

	case whatsapp.IsSuspension(apiErr.Code):
		ch.Suspend("provider suspended the account")
		if err := uow.Channels().Update(ctx, ch.ID, ch); err != nil {
			return err
		}
		uow.Track(ch)
		return s.recordFailure(ctx, uow, msg, strconv.Itoa(apiErr.Code))

	default:
		if apiErr.StatusCode >= 500 {
			return sendErr
		}
		return s.recordFailure(ctx, uow, msg, strconv.Itoa(apiErr.Code))
	}
}

func (s *SendService) recordFailure(ctx context.Context, uow *storage.UnitOfWork, msg *domain.Message, errorCode string) error {
	if err := msg.MarkFailed(errorCode); err != nil {
		return err
	}
	if err := uow.Messages().Update(ctx, msg.ID, msg); err != nil {
		return err
	}
	uow.Track(msg)
	s.logger.Warn("message failed permanently",
		"message_id", msg.ID, "error_code", errorCode)
	return nil
}
