package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationMetadata holds tenant-level settings that ride along as JSON.
type OrganizationMetadata struct {
	Timezone string            `json:"timezone,omitempty"`
	Language string            `json:"language,omitempty"`
	Branding map[string]string `json:"branding,omitempty"`
	Features []string          `json:"features,omitempty"`
	Limits   map[string]int64  `json:"limits,omitempty"`
}

// Organization is the tenant root. Every tenant-scoped row in the system
// carries its ID and is filtered by row-level policy.
type Organization struct {
	AggregateRoot

	ID        uuid.UUID
	Name      string
	Slug      string
	Industry  string
	Metadata  OrganizationMetadata
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewOrganization creates an active tenant with a validated slug.
func NewOrganization(name, slug, industry string) (*Organization, error) {
	if name == "" {
		return nil, E(CodeValidationError, "organization name is required")
	}
	normalized, err := NewSlug(slug)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	org := &Organization{
		ID:        uuid.New(),
		Name:      name,
		Slug:      normalized,
		Industry:  industry,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	org.Raise(OrganizationCreated{
		BaseEvent: newBaseEvent(org.ID, org.ID, "organization"),
		Slug:      normalized,
	})
	return org, nil
}

// Deactivate is reversible; it does not soft-delete.
func (o *Organization) Deactivate() {
	if !o.IsActive {
		return
	}
	o.IsActive = false
	o.UpdatedAt = time.Now().UTC()
	o.Raise(OrganizationDeactivated{BaseEvent: newBaseEvent(o.ID, o.ID, "organization")})
}

// Reactivate reverses a deactivation.
func (o *Organization) Reactivate() {
	o.IsActive = true
	o.UpdatedAt = time.Now().UTC()
}
