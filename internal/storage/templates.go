package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var templateColumns = []string{
	"id", "organization_id", "channel_id", "name", "language", "category",
	"status", "components", "provider_template_id", "created_at", "updated_at",
}

func templateToRow(t *domain.Template) []any {
	var providerID any
	if t.ProviderTemplateID != "" {
		providerID = t.ProviderTemplateID
	}
	return []any{
		t.ID, t.OrganizationID, t.ChannelID, t.Name, t.Language, string(t.Category),
		string(t.Status), []byte(t.Components), providerID, t.CreatedAt, t.UpdatedAt,
	}
}

func templateFromRow(row pgx.Row) (*domain.Template, error) {
	var (
		t                  domain.Template
		category, status   string
		components         []byte
		providerTemplateID *string
	)
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.ChannelID, &t.Name, &t.Language, &category,
		&status, &components, &providerTemplateID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Category = domain.TemplateCategory(category)
	t.Status = domain.TemplateStatus(status)
	t.Components = json.RawMessage(components)
	if providerTemplateID != nil {
		t.ProviderTemplateID = *providerTemplateID
	}
	return &t, nil
}

// TemplateRepo persists message templates in messaging.templates.
type TemplateRepo struct {
	*Repo[*domain.Template]
}

// Templates returns the repository bound to this unit of work.
func (u *UnitOfWork) Templates() *TemplateRepo {
	return &TemplateRepo{NewRepo(u, "messaging.templates", templateColumns, true, templateToRow, templateFromRow)}
}

// GetByName fetches the unique (channel, name, language) template.
func (r *TemplateRepo) GetByName(ctx context.Context, channelID uuid.UUID, name, language string) (*domain.Template, error) {
	return r.FindOne(ctx, Filters{"channel_id": channelID, "name": name, "language": language})
}

// GetByProviderID resolves a template from a webhook status update.
func (r *TemplateRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.Template, error) {
	t, err := templateFromRow(r.uow.Tx().QueryRow(ctx,
		"SELECT "+r.columnList()+" FROM messaging.templates WHERE provider_template_id = $1",
		providerID))
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// ListByChannel pages templates for one channel.
func (r *TemplateRepo) ListByChannel(ctx context.Context, channelID uuid.UUID, skip, limit int) ([]*domain.Template, error) {
	return r.FindAll(ctx, Filters{"channel_id": channelID}, skip, limit, "name, language")
}
