package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var channelColumns = []string{
	"id", "organization_id", "phone_number_id", "business_phone",
	"encrypted_access_token", "encrypted_webhook_token", "rate_limit_per_second",
	"monthly_message_limit", "is_active", "is_suspended", "messages_this_month",
	"usage_period", "created_at", "updated_at",
}

func channelToRow(c *domain.Channel) []any {
	return []any{
		c.ID, c.OrganizationID, c.PhoneNumberID, c.BusinessPhone.String(),
		c.EncryptedAccessToken, c.EncryptedWebhookToken, c.RateLimitPerSecond,
		c.MonthlyMessageLimit, c.IsActive, c.IsSuspended, c.MessagesThisMonth,
		c.UsagePeriod, c.CreatedAt, c.UpdatedAt,
	}
}

func channelFromRow(row pgx.Row) (*domain.Channel, error) {
	var (
		c     domain.Channel
		phone string
	)
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.PhoneNumberID, &phone,
		&c.EncryptedAccessToken, &c.EncryptedWebhookToken, &c.RateLimitPerSecond,
		&c.MonthlyMessageLimit, &c.IsActive, &c.IsSuspended, &c.MessagesThisMonth,
		&c.UsagePeriod, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.BusinessPhone = domain.Phone(phone)
	return &c, nil
}

// ChannelRepo persists WhatsApp channels in messaging.channels.
type ChannelRepo struct {
	*Repo[*domain.Channel]
}

// Channels returns the repository bound to this unit of work.
func (u *UnitOfWork) Channels() *ChannelRepo {
	return &ChannelRepo{NewRepo(u, "messaging.channels", channelColumns, true, channelToRow, channelFromRow)}
}

// GetByPhoneNumberID resolves the channel a webhook addresses. Webhook
// processing runs before any tenant is known, so this executes on a system
// unit of work and the caller applies the channel's tenant afterwards.
func (r *ChannelRepo) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*domain.Channel, error) {
	ch, err := channelFromRow(r.uow.Tx().QueryRow(ctx,
		"SELECT "+r.columnList()+" FROM messaging.channels WHERE phone_number_id = $1",
		phoneNumberID))
	if err != nil {
		return nil, mapError(err)
	}
	return ch, nil
}

// GetForWebhook loads a channel by id before any tenant is known. Same
// contract as GetByPhoneNumberID: system unit of work only.
func (r *ChannelRepo) GetForWebhook(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	ch, err := channelFromRow(r.uow.Tx().QueryRow(ctx,
		"SELECT "+r.columnList()+" FROM messaging.channels WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err)
	}
	return ch, nil
}

// ListByOrganization pages a tenant's channels.
func (r *ChannelRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, skip, limit int) ([]*domain.Channel, error) {
	return r.FindAll(ctx, Filters{"organization_id": orgID}, skip, limit, "created_at DESC")
}
