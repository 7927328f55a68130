// Package messaging implements channel lifecycle, the outbound send pipeline,
// template management, the 24-hour service window, and webhook processing.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/crypto"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelService manages WhatsApp channels. Credentials are sealed before
// they touch the database and never leave this package in clear.
type ChannelService struct {
	pool   *pgxpool.Pool
	box    *crypto.SecretBox
	audit  audit.Service
	logger *slog.Logger
}

func NewChannelService(pool *pgxpool.Pool, box *crypto.SecretBox, auditor audit.Service, logger *slog.Logger) *ChannelService {
	return &ChannelService{
		pool:   pool,
		box:    box,
		audit:  auditor,
		logger: logger.With("component", "channels"),
	}
}

// CreateChannelInput carries the provisioning fields. AccessToken and
// WebhookVerifyToken arrive in clear and are sealed here.
type CreateChannelInput struct {
	PhoneNumberID       string
	BusinessPhone       string
	AccessToken         string
	WebhookVerifyToken  string
	RateLimitPerSecond  int
	MonthlyMessageLimit int64
}

// CreateChannel provisions a channel for the caller's organization.
func (s *ChannelService) CreateChannel(ctx context.Context, in CreateChannelInput) (*domain.Channel, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	phone, err := domain.NewPhone(in.BusinessPhone)
	if err != nil {
		return nil, err
	}
	if in.AccessToken == "" || in.WebhookVerifyToken == "" {
		return nil, domain.E(domain.CodeValidationError, "access token and webhook verify token are required")
	}

	encAccess, err := s.box.Seal(in.AccessToken)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to seal access token", err)
	}
	encWebhook, err := s.box.Seal(in.WebhookVerifyToken)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to seal webhook token", err)
	}

	ch, err := domain.NewChannel(tc.TenantID, in.PhoneNumberID, phone, encAccess, encWebhook, in.RateLimitPerSecond, in.MonthlyMessageLimit)
	if err != nil {
		return nil, err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if err := uow.Channels().Add(ctx, ch); err != nil {
			return err
		}
		uow.Track(ch)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditChannelCreated, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "channel",
		ResourceID:     ch.ID,
	})
	return ch, nil
}

// UpdateChannelInput patches mutable channel fields; zero values are skipped.
type UpdateChannelInput struct {
	AccessToken         string
	WebhookVerifyToken  string
	RateLimitPerSecond  int
	MonthlyMessageLimit *int64
}

// UpdateChannel rotates credentials and adjusts limits.
func (s *ChannelService) UpdateChannel(ctx context.Context, channelID uuid.UUID, in UpdateChannelInput) (*domain.Channel, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var ch *domain.Channel
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		ch, err = uow.Channels().GetByID(ctx, channelID)
		if err != nil {
			return err
		}

		if in.AccessToken != "" {
			sealed, err := s.box.Seal(in.AccessToken)
			if err != nil {
				return domain.Wrap(domain.CodeInternalError, "failed to seal access token", err)
			}
			ch.EncryptedAccessToken = sealed
			// A fresh token lifts a token-invalid deactivation.
			ch.IsActive = true
		}
		if in.WebhookVerifyToken != "" {
			sealed, err := s.box.Seal(in.WebhookVerifyToken)
			if err != nil {
				return domain.Wrap(domain.CodeInternalError, "failed to seal webhook token", err)
			}
			ch.EncryptedWebhookToken = sealed
		}
		if in.RateLimitPerSecond > 0 {
			ch.RateLimitPerSecond = in.RateLimitPerSecond
		}
		if in.MonthlyMessageLimit != nil {
			ch.MonthlyMessageLimit = *in.MonthlyMessageLimit
		}
		ch.UpdatedAt = time.Now().UTC()
		return uow.Channels().Update(ctx, ch.ID, ch)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditChannelUpdated, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "channel",
		ResourceID:     channelID,
	})
	return ch, nil
}

// DeactivateChannel turns off outbound traffic without deleting history.
func (s *ChannelService) DeactivateChannel(ctx context.Context, channelID uuid.UUID, reason string) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		ch, err := uow.Channels().GetByID(ctx, channelID)
		if err != nil {
			return err
		}
		ch.Deactivate(reason)
		if err := uow.Channels().Update(ctx, ch.ID, ch); err != nil {
			return err
		}
		uow.Track(ch)
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, domain.AuditChannelDeleted, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "channel",
		ResourceID:     channelID,
		Metadata:       map[string]any{"reason": reason},
	})
	return nil
}

// GetChannel fetches one channel of the caller's organization.
func (s *ChannelService) GetChannel(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var ch *domain.Channel
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		ch, err = uow.Channels().GetByID(ctx, channelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChannels pages the organization's channels.
func (s *ChannelService) ListChannels(ctx context.Context, skip, limit int) ([]*domain.Channel, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var channels []*domain.Channel
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		channels, err = uow.Channels().ListByOrganization(ctx, tc.TenantID, skip, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return channels, nil
}
