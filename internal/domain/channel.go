package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a WhatsApp business phone line owned by one organization.
// Access and webhook tokens are stored AES-GCM encrypted.
type Channel struct {
	AggregateRoot

	ID                    uuid.UUID
	OrganizationID        uuid.UUID
	PhoneNumberID         string
	BusinessPhone         Phone
	EncryptedAccessToken  string
	EncryptedWebhookToken string
	RateLimitPerSecond    int
	MonthlyMessageLimit   int64
	IsActive              bool
	IsSuspended           bool
	MessagesThisMonth     int64
	UsagePeriod           string // "2026-08", reset by the janitor on rollover
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultRateLimitPerSecond matches the provider's default throughput tier.
const DefaultRateLimitPerSecond = 80

// NewChannel creates an active channel with encrypted credentials.
func NewChannel(orgID uuid.UUID, phoneNumberID string, businessPhone Phone, encAccessToken, encWebhookToken string, rateLimit int, monthlyLimit int64) (*Channel, error) {
	if phoneNumberID == "" {
		return nil, E(CodeValidationError, "phone_number_id is required")
	}
	if encAccessToken == "" || encWebhookToken == "" {
		return nil, E(CodeValidationError, "channel credentials are required")
	}
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimitPerSecond
	}

	now := time.Now().UTC()
	ch := &Channel{
		ID:                    uuid.New(),
		OrganizationID:        orgID,
		PhoneNumberID:         phoneNumberID,
		BusinessPhone:         businessPhone,
		EncryptedAccessToken:  encAccessToken,
		EncryptedWebhookToken: encWebhookToken,
		RateLimitPerSecond:    rateLimit,
		MonthlyMessageLimit:   monthlyLimit,
		IsActive:              true,
		UsagePeriod:           now.Format("2006-01"),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	ch.Raise(ChannelCreated{
		BaseEvent:     newBaseEvent(ch.ID, orgID, "channel"),
		PhoneNumberID: phoneNumberID,
	})
	return ch, nil
}

// CanSend reports why the channel cannot accept outbound traffic, or nil.
func (c *Channel) CanSend(now time.Time) error {
	if !c.IsActive {
		return E(CodeForbidden, "channel is inactive")
	}
	if c.IsSuspended {
		return E(CodeForbidden, "channel is suspended")
	}
	if c.MonthlyMessageLimit > 0 && c.MessagesThisMonth >= c.MonthlyMessageLimit {
		return E(CodeRateLimited, "monthly message limit reached")
	}
	return nil
}

// RecordOutbound bumps the monthly usage counter, resetting it on rollover.
func (c *Channel) RecordOutbound(now time.Time) {
	period := now.UTC().Format("2006-01")
	if c.UsagePeriod != period {
		c.UsagePeriod = period
		c.MessagesThisMonth = 0
	}
	c.MessagesThisMonth++
	c.UpdatedAt = now.UTC()
}

// Deactivate is used when the provider reports the access token invalid.
func (c *Channel) Deactivate(reason string) {
	if !c.IsActive {
		return
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	c.Raise(ChannelDeactivated{
		BaseEvent: newBaseEvent(c.ID, c.OrganizationID, "channel"),
		Reason:    reason,
	})
}

// Suspend marks the channel suspended by the provider.
func (c *Channel) Suspend(reason string) {
	if c.IsSuspended {
		return
	}
	c.IsSuspended = true
	c.UpdatedAt = time.Now().UTC()
	c.Raise(ChannelSuspended{
		BaseEvent: newBaseEvent(c.ID, c.OrganizationID, "channel"),
		Reason:    reason,
	})
}
