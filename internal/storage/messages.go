package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var messageColumns = []string{
	"id", "organization_id", "channel_id", "direction", "type", "from_phone",
	"to_phone", "content", "content_hash", "status", "whatsapp_message_id",
	"retry_count", "error_code", "created_at", "status_updated_at", "delivered_at",
}

func messageToRow(m *domain.Message) []any {
	var providerID, errorCode any
	if m.WhatsAppMessageID != "" {
		providerID = m.WhatsAppMessageID
	}
	if m.ErrorCode != "" {
		errorCode = m.ErrorCode
	}
	return []any{
		m.ID, m.OrganizationID, m.ChannelID, string(m.Direction), string(m.Type),
		m.FromPhone.String(), m.ToPhone.String(), []byte(m.Content), m.ContentHash,
		string(m.Status), providerID, m.RetryCount, errorCode,
		m.CreatedAt, m.StatusUpdatedAt, m.DeliveredAt,
	}
}

func messageFromRow(row pgx.Row) (*domain.Message, error) {
	var (
		m                    domain.Message
		direction, msgType   string
		from, to, status     string
		content              []byte
		providerID, errorStr *string
	)
	err := row.Scan(
		&m.ID, &m.OrganizationID, &m.ChannelID, &direction, &msgType, &from,
		&to, &content, &m.ContentHash, &status, &providerID,
		&m.RetryCount, &errorStr, &m.CreatedAt, &m.StatusUpdatedAt, &m.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	m.Direction = domain.MessageDirection(direction)
	m.Type = domain.MessageType(msgType)
	m.FromPhone = domain.Phone(from)
	m.ToPhone = domain.Phone(to)
	m.Content = json.RawMessage(content)
	m.Status = domain.MessageStatus(status)
	if providerID != nil {
		m.WhatsAppMessageID = *providerID
	}
	if errorStr != nil {
		m.ErrorCode = *errorStr
	}
	return &m, nil
}

// MessageRepo persists messages in messaging.messages (partitioned by
// created_at).
type MessageRepo struct {
	*Repo[*domain.Message]
}

// Messages returns the repository bound to this unit of work.
func (u *UnitOfWork) Messages() *MessageRepo {
	return &MessageRepo{NewRepo(u, "messaging.messages", messageColumns, true, messageToRow, messageFromRow)}
}

// GetByContentHash implements idempotent queueing: a prior outbound message
// with the same hash short-circuits the send.
func (r *MessageRepo) GetByContentHash(ctx context.Context, channelID uuid.UUID, hash string) (*domain.Message, error) {
	return r.FindOne(ctx, Filters{
		"channel_id":   channelID,
		"content_hash": hash,
		"direction":    string(domain.DirectionOutbound),
	})
}

// GetByProviderID resolves a message from a webhook status entry. Runs on a
// system unit of work because the webhook carries no tenant yet.
func (r *MessageRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.Message, error) {
	m, err := messageFromRow(r.uow.Tx().QueryRow(ctx,
		"SELECT "+r.columnList()+" FROM messaging.messages WHERE whatsapp_message_id = $1",
		providerID))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

// LastInboundAt finds when the customer last wrote to us; the 24h service
// window gate falls back to this when the cache marker is cold.
func (r *MessageRepo) LastInboundAt(ctx context.Context, orgID uuid.UUID, from domain.Phone) (time.Time, error) {
	if err := r.guard(ctx); err != nil {
		return time.Time{}, err
	}
	var last *time.Time
	err := r.uow.Tx().QueryRow(ctx, `
		SELECT MAX(created_at) FROM messaging.messages
		WHERE organization_id = $1 AND from_phone = $2 AND direction = 'inbound'
	`, orgID, from.String()).Scan(&last)
	if err != nil {
		return time.Time{}, mapError(err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}

// ExistsInbound reports whether an inbound provider message id was already
// persisted; the database backstop behind the cache dedup.
func (r *MessageRepo) ExistsInbound(ctx context.Context, providerID string) (bool, error) {
	var exists bool
	err := r.uow.Tx().QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM messaging.messages WHERE whatsapp_message_id = $1 AND direction = 'inbound')",
		providerID).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// ListByOrganization pages messages for the list endpoint, newest first to
// ride the partition ordering.
func (r *MessageRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, filters Filters, skip, limit int) ([]*domain.Message, error) {
	merged := Filters{"organization_id": orgID}
	for k, v := range filters {
		merged[k] = v
	}
	return r.FindAll(ctx, merged, skip, limit, "created_at DESC")
}
