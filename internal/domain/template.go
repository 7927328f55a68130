package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TemplateCategory per provider taxonomy.
type TemplateCategory string

const (
	CategoryMarketing      TemplateCategory = "marketing"
	CategoryUtility        TemplateCategory = "utility"
	CategoryAuthentication TemplateCategory = "authentication"
)

// TemplateStatus is the provider approval lifecycle.
type TemplateStatus string

const (
	TemplateDraft    TemplateStatus = "draft"
	TemplatePending  TemplateStatus = "pending"
	TemplateApproved TemplateStatus = "approved"
	TemplateRejected TemplateStatus = "rejected"
	TemplatePaused   TemplateStatus = "paused"
)

// Template is a pre-approved message layout, unique on
// (channel_id, name, language).
type Template struct {
	AggregateRoot

	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	ChannelID          uuid.UUID
	Name               string
	Language           string
	Category           TemplateCategory
	Status             TemplateStatus
	Components         json.RawMessage
	ProviderTemplateID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewTemplate creates a draft template.
func NewTemplate(orgID, channelID uuid.UUID, name, language string, category TemplateCategory, components json.RawMessage) (*Template, error) {
	if name == "" || language == "" {
		return nil, E(CodeValidationError, "template name and language are required")
	}
	switch category {
	case CategoryMarketing, CategoryUtility, CategoryAuthentication:
	default:
		return nil, E(CodeValidationError, "unknown template category")
	}
	if len(components) == 0 {
		return nil, E(CodeValidationError, "template components are required")
	}

	now := time.Now().UTC()
	return &Template{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ChannelID:      channelID,
		Name:           name,
		Language:       language,
		Category:       category,
		Status:         TemplateDraft,
		Components:     components,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Submit moves a draft (or rejected) template to pending review.
func (t *Template) Submit(providerID string) error {
	if t.Status != TemplateDraft && t.Status != TemplateRejected {
		return E(CodeConflict, "template already submitted")
	}
	t.Status = TemplatePending
	t.ProviderTemplateID = providerID
	t.UpdatedAt = time.Now().UTC()
	t.Raise(TemplateSubmitted{
		BaseEvent: newBaseEvent(t.ID, t.OrganizationID, "template"),
		Name:      t.Name,
		Language:  t.Language,
	})
	return nil
}

// UpdateStatus applies the provider's review verdict.
func (t *Template) UpdateStatus(status TemplateStatus) error {
	switch status {
	case TemplateApproved, TemplateRejected, TemplatePaused:
	default:
		return E(CodeValidationError, "unknown template status")
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	t.Raise(TemplateStatusChanged{
		BaseEvent: newBaseEvent(t.ID, t.OrganizationID, "template"),
		Status:    status,
	})
	return nil
}
