package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/crypto"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TemplateService manages pre-approved message layouts and their provider
// review lifecycle.
type TemplateService struct {
	pool     *pgxpool.Pool
	provider whatsapp.Provider
	box      *crypto.SecretBox
	logger   *slog.Logger
}

func NewTemplateService(pool *pgxpool.Pool, provider whatsapp.Provider, box *crypto.SecretBox, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		pool:     pool,
		provider: provider,
		box:      box,
		logger:   logger.With("component", "templates"),
	}
}

// CreateTemplateInput carries the fields for a new draft.
type CreateTemplateInput struct {
	ChannelID  uuid.UUID
	Name       string
	Language   string
	Category   domain.TemplateCategory
	Components json.RawMessage
}

// CreateTemplate stores a draft; nothing goes to the provider yet.
func (s *TemplateService) CreateTemplate(ctx context.Context, in CreateTemplateInput) (*domain.Template, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	tpl, err := domain.NewTemplate(tc.TenantID, in.ChannelID, in.Name, in.Language, in.Category, in.Components)
	if err != nil {
		return nil, err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if _, err := uow.Channels().GetByID(ctx, in.ChannelID); err != nil {
			return err
		}
		return uow.Templates().Add(ctx, tpl)
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// SubmitTemplate sends a draft to the provider for review. The provider call
// happens before the transaction: a rejected submission leaves the draft
// untouched.
func (s *TemplateService) SubmitTemplate(ctx context.Context, templateID uuid.UUID, businessAccountID string) (*domain.Template, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var (
		tpl   *domain.Template
		token string
	)
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		tpl, err = uow.Templates().GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		ch, err := uow.Channels().GetByID(ctx, tpl.ChannelID)
		if err != nil {
			return err
		}
		token, err = s.box.Open(ch.EncryptedAccessToken)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tpl.Status != domain.TemplateDraft && tpl.Status != domain.TemplateRejected {
		return nil, domain.E(domain.CodeConflict, "template already submitted")
	}

	providerID, err := s.provider.SubmitTemplate(ctx, token, businessAccountID, whatsapp.TemplateSubmission{
		Name:       tpl.Name,
		Language:   tpl.Language,
		Category:   string(tpl.Category),
		Components: tpl.Components,
	})
	if err != nil {
		return nil, err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		tpl, err = uow.Templates().GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if err := tpl.Submit(providerID); err != nil {
			return err
		}
		if err := uow.Templates().Update(ctx, tpl.ID, tpl); err != nil {
			return err
		}
		uow.Track(tpl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// UpdateTemplateStatus applies a provider review verdict; called from webhook
// processing.
func (s *TemplateService) UpdateTemplateStatus(ctx context.Context, orgID uuid.UUID, providerTemplateID string, status domain.TemplateStatus) error {
	return storage.WithTenant(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		tpl, err := uow.Templates().GetByProviderID(ctx, providerTemplateID)
		if err != nil {
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
}

// SendTest delivers an approved template straight to one recipient, outside
// the queued pipeline, so operators can check the rendered layout. No message
// row is written; the provider id is returned for reference.
func (s *TemplateService) SendTest(ctx context.Context, templateID uuid.UUID, rawTo string) (string, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return "", err
	}
	to, err := domain.NewPhone(rawTo)
	if err != nil {
		return "", err
	}

	var (
		tpl           *domain.Template
		token         string
		phoneNumberID string
	)
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		tpl, err = uow.Templates().GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		ch, err := uow.Channels().GetByID(ctx, tpl.ChannelID)
		if err != nil {
			return err
		}
		if err := ch.CanSend(time.Now().UTC()); err != nil {
			return err
		}
		phoneNumberID = ch.PhoneNumberID
		token, err = s.box.Open(ch.EncryptedAccessToken)
		return err
	})
	if err != nil {
		return "", err
	}
	if tpl.Status != domain.TemplateApproved {
		return "", domain.E(domain.CodeConflict, "template is not approved")
	}

	providerID, err := s.provider.SendMessage(ctx, token, phoneNumberID, whatsapp.SendPayload{
		To:      to.String(),
		Type:    "template",
		Content: templateSendContent(tpl),
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("template test sent",
		"template_id", tpl.ID, "provider_message_id", providerID)
	return providerID, nil
}

// templateSendContent builds the provider template object with no variable
// substitutions.
func templateSendContent(tpl *domain.Template) json.RawMessage {
	body, _ := json.Marshal(map[string]any{
		"name":     tpl.Name,
		"language": map[string]string{"code": tpl.Language},
	})
	return body
}

// GetTemplate fetches one template.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var tpl *domain.Template
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		tpl, err = uow.Templates().GetByID(ctx, templateID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// ListTemplates pages a channel's templates.
func (s *TemplateService) ListTemplates(ctx context.Context, channelID uuid.UUID, skip, limit int) ([]*domain.Template, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var tpls []*domain.Template
	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		tpls, err = uow.Templates().ListByChannel(ctx, channelID, skip, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

// DeleteTemplate removes a template that is not pending review.
func (s *TemplateService) DeleteTemplate(ctx context.Context, templateID uuid.UUID) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	return storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		tpl, err := uow.Templates().GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if tpl.Status == domain.TemplatePending {
			return domain.E(domain.CodeConflict, "template is pending provider review")
		}
		return uow.Templates().Delete(ctx, templateID)
	})
}
