package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/crypto"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/ratelimit"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// webhookDedupTTL covers the provider's redelivery horizon; the messages
// table unique lookup is the backstop when the cache forgets.
const webhookDedupTTL = time.Hour

// WebhookService verifies and processes provider callbacks. Webhooks are
// channel-scoped: the URL carries the channel id, and both the GET challenge
// and the POST signature are checked against that channel's own token.
type WebhookService struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	box     *crypto.SecretBox
	window  *ServiceWindow
	limiter *ratelimit.Limiter
	audit   audit.Service
	logger  *slog.Logger
}

func NewWebhookService(pool *pgxpool.Pool, rdb *redis.Client, box *crypto.SecretBox, window *ServiceWindow, limiter *ratelimit.Limiter, auditor audit.Service, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		pool:    pool,
		rdb:     rdb,
		box:     box,
		window:  window,
		limiter: limiter,
		audit:   auditor,
		logger:  logger.With("component", "webhooks"),
	}
}

// VerifyChallenge answers the provider's subscription handshake. Returns the
// challenge to echo on success.
func (s *WebhookService) VerifyChallenge(ctx context.Context, channelID uuid.UUID, mode, verifyToken, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", domain.E(domain.CodeValidationError, "unsupported hub.mode")
	}

	var expected string
	err := storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		ch, err := uow.Channels().GetForWebhook(ctx, channelID)
		if err != nil {
			return err
		}
		expected, err = s.box.Open(ch.EncryptedWebhookToken)
		return err
	})
	if err != nil {
		return "", err
	}

	if !auth.SecureCompare(verifyToken, expected) {
		return "", domain.E(domain.CodeUnauthorized, "verify token mismatch")
	}
	return challenge, nil
}

// Process validates the signature and applies every message and status in
// the callback. The provider redelivers on non-200, so processing errors on
// individual entries are logged and swallowed once the payload is authentic.
func (s *WebhookService) Process(ctx context.Context, channelID uuid.UUID, body []byte, signature string) error {
	var (
		ch     *domain.Channel
		secret string
	)
	err := storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		var err error
		ch, err = uow.Channels().GetForWebhook(ctx, channelID)
		if err != nil {
			return err
		}
		secret, err = s.box.Open(ch.EncryptedWebhookToken)
		return err
	})
	if err != nil {
		return err
	}

	if !whatsapp.VerifySignature(secret, body, signature) {
		s.audit.Log(ctx, domain.AuditWebhookRejected, audit.LogParams{
			OrganizationID: ch.OrganizationID,
			ResourceType:   "channel",
			ResourceID:     ch.ID,
			Metadata:       map[string]any{"reason": "bad_signature"},
		})
		return domain.E(domain.CodeUnauthorized, "invalid webhook signature")
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Wrap(domain.CodeValidationError, "malformed webhook payload", err)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			switch change.Field {
			case "messages":
				s.applyMessages(ctx, ch, change.Value)
			case "message_template_status_update":
				s.applyTemplateUpdate(ctx, ch, change.Value)
			default:
				s.logger.Debug("ignoring webhook field", "field", change.Field)
			}
		}
	}
	return nil
}

// applyMessages handles inbound messages and status updates of one change.
func (s *WebhookService) applyMessages(ctx context.Context, ch *domain.Channel, value whatsapp.ChangeValue) {
	for _, in := range value.Messages {
		if err := s.applyInbound(ctx, ch, in); err != nil {
			s.logger.Error("failed to apply inbound message",
				"provider_message_id", in.ID, "error", err)
		}
	}
	for _, st := range value.Statuses {
		if err := s.applyStatus(ctx, ch, st); err != nil {
			s.logger.Error("failed to apply status update",
				"provider_message_id", st.ID, "status", st.Status, "error", err)
		}
	}
}

func dedupKey(providerMessageID string) string {
	return "webhook:dedup:" + providerMessageID
}

// applyInbound persists one customer message exactly once and opens the
// service window.
func (s *WebhookService) applyInbound(ctx context.Context, ch *domain.Channel, in whatsapp.InboundMessage) error {
	// Fast dedup. SetNX fails closed: if the key exists we already saw it.
	fresh, err := s.rdb.SetNX(ctx, dedupKey(in.ID), 1, webhookDedupTTL).Result()
	if err != nil {
		s.logger.Warn("webhook dedup cache unavailable", "error", err)
	} else if !fresh {
		return nil
	}

	from, err := domain.NewPhone(in.From)
	if err != nil {
		return err
	}
	msgType, content := inboundContent(in)

	err = storage.WithTenant(ctx, s.pool, tenant.Context{TenantID: ch.OrganizationID}, func(uow *storage.UnitOfWork) error {
		// Database backstop behind the cache.
		exists, err := uow.Messages().ExistsInbound(ctx, in.ID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		msg := domain.NewInboundMessage(ch.OrganizationID, ch.ID, msgType, from, ch.BusinessPhone, content, in.ID)
		if err := uow.Messages().Add(ctx, msg); err != nil {
			return err
		}
		uow.Track(msg)
		return nil
	})
	if err != nil {
		return err
	}

	s.window.MarkInbound(ctx, ch.OrganizationID, from, time.Now().UTC())
	return nil
}

// inboundContent normalizes the provider's typed payload to our storage form.
func inboundContent(in whatsapp.InboundMessage) (domain.MessageType, json.RawMessage) {
	switch {
	case in.Text != nil:
		content, _ := json.Marshal(map[string]string{"body": in.Text.Body})
		return domain.MessageText, content
	case in.Image != nil:
		content, _ := json.Marshal(in.Image)
		return domain.MessageMedia, content
	case in.Document != nil:
		content, _ := json.Marshal(in.Document)
		return domain.MessageMedia, content
	case in.Audio != nil:
		content, _ := json.Marshal(in.Audio)
		return domain.MessageMedia, content
	case in.Video != nil:
		content, _ := json.Marshal(in.Video)
		return domain.MessageMedia, content
	default:
		content, _ := json.Marshal(map[string]string{"type": in.Type})
		return domain.MessageType(in.Type), content
	}
}

// applyStatus advances a message's FSM from a provider status callback.
// Out-of-order updates that would move backwards are dropped.
func (s *WebhookService) applyStatus(ctx context.Context, ch *domain.Channel, st whatsapp.StatusUpdate) error {
	target, ok := mapProviderStatus(st.Status)
	if !ok {
		s.logger.Debug("ignoring unknown provider status", "status", st.Status)
		return nil
	}

	return storage.WithTenant(ctx, s.pool, tenant.Context{TenantID: ch.OrganizationID}, func(uow *storage.UnitOfWork) error {
		msg, err := uow.Messages().GetByProviderID(ctx, st.ID)
		if err != nil {
			if storage.IsNotFound(err) {
				s.logger.Debug("status update for unknown message", "provider_message_id", st.ID)
				return nil
			}
			return err
		}

		if target == domain.StatusFailed {
			if err := s.applyFailureCodes(ctx, uow, ch, st); err != nil {
				return err
			}
			if msg.Status == domain.StatusFailed {
				return nil
			}
			errorCode := ""
			if len(st.Errors) > 0 {
				errorCode = strconv.Itoa(st.Errors[0].Code)
			}
			if err := msg.MarkFailed(errorCode); err != nil {
				// Terminal already; nothing to reconcile.
				return nil
			}
		} else {
			if !domain.CanTransition(msg.Status, target) {
				// Late or duplicate callback.
				return nil
			}
			if err := msg.Transition(target); err != nil {
				return nil
			}
		}

		if err := uow.Messages().Update(ctx, msg.ID, msg); err != nil {
			return err
		}
		uow.Track(msg)
		return nil
	})
}

// applyFailureCodes applies the channel policy carried by failure callbacks.
func (s *WebhookService) applyFailureCodes(ctx context.Context, uow *storage.UnitOfWork, ch *domain.Channel, st whatsapp.StatusUpdate) error {
	for _, e := range st.Errors {
		switch {
		case whatsapp.IsRateLimited(e.Code):
			if err := s.limiter.Throttle(ctx, ch.ID, time.Now().Add(providerThrottlePause)); err != nil {
				s.logger.Warn("failed to throttle channel", "channel_id", ch.ID, "error", err)
			}
		case whatsapp.IsAuthError(e.Code):
			ch.Deactivate("provider rejected access token")
			if err := uow.Channels().Update(ctx, ch.ID, ch); err != nil {
				return err
			}
			uow.Track(ch)
		case whatsapp.IsSuspension(e.Code):
			ch.Suspend("provider suspended the account")
			if err := uow.Channels().Update(ctx, ch.ID, ch); err != nil {
				return err
			}
			uow.Track(ch)
		}
	}
	return nil
}

// applyTemplateUpdate applies a provider review verdict to the template.
func (s *WebhookService) applyTemplateUpdate(ctx context.Context, ch *domain.Channel, value whatsapp.ChangeValue) {
	var status domain.TemplateStatus
	switch value.Event {
	case "APPROVED":
		status = domain.TemplateApproved
	case "REJECTED":
		status = domain.TemplateRejected
	case "PAUSED":
		status = domain.TemplatePaused
	default:
		s.logger.Debug("ignoring template event", "event", value.Event)
		return
	}

	providerID := fmt.Sprintf("%d", value.MessageTemplateID)
	err := storage.WithTenant(ctx, s.pool, tenant.Context{TenantID: ch.OrganizationID}, func(uow *storage.UnitOfWork) error {
		tpl, err := uow.Templates().GetByProviderID(ctx, providerID)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil
			}
			return err
		}
		if err := tpl.UpdateStatus(status); err != nil {
			return err
		}
		if err := uow.Templates().Update(ctx, tpl.ID, tpl); err != nil {
			return err
		}
		uow.Track(tpl)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to apply template update",
			"provider_template_id", providerID, "error", err)
	}
}

// mapProviderStatus translates the provider's status vocabulary.
func mapProviderStatus(status string) (domain.MessageStatus, bool) {
	switch status {
	case "sent":
		return domain.StatusSent, true
	case "delivered":
		return domain.StatusDelivered, true
	case "read":
		return domain.StatusRead, true
	case "failed":
		return domain.StatusFailed, true
	default:
		return "", false
	}
}
