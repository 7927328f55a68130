package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/messaging"
)

// TemplateHandler serves template drafting, submission, and queries.
type TemplateHandler struct {
	service *messaging.TemplateService
}

func NewTemplateHandler(service *messaging.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

type createTemplateRequest struct {
	ChannelID  string          `json:"channel_id"`
	Name       string          `json:"name"`
	Language   string          `json:"language"`
	Category   string          `json:"category"`
	Components json.RawMessage `json:"components"`
}

type templateResponse struct {
	ID                 string          `json:"id"`
	ChannelID          string          `json:"channel_id"`
	Name               string          `json:"name"`
	Language           string          `json:"language"`
	Category           string          `json:"category"`
	Components         json.RawMessage `json:"components"`
	Status             string          `json:"status"`
	ProviderTemplateID string          `json:"provider_template_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func toTemplateResponse(tpl *domain.Template) templateResponse {
	return templateResponse{
		ID:                 tpl.ID.String(),
		ChannelID:          tpl.ChannelID.String(),
		Name:               tpl.Name,
		Language:           tpl.Language,
		Category:           string(tpl.Category),
		Components:         tpl.Components,
		Status:             string(tpl.Status),
		ProviderTemplateID: tpl.ProviderTemplateID,
		CreatedAt:          tpl.CreatedAt,
	}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	channelID, err := parseUUID(req.ChannelID, "channel_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	tpl, err := h.service.CreateTemplate(r.Context(), messaging.CreateTemplateInput{
		ChannelID:  channelID,
		Name:       req.Name,
		Language:   req.Language,
		Category:   domain.TemplateCategory(req.Category),
		Components: req.Components,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, toTemplateResponse(tpl))
}

type submitTemplateRequest struct {
	BusinessAccountID string `json:"business_account_id"`
}

func (h *TemplateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuidParam(r, "templateID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	var req submitTemplateRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	tpl, err := h.service.SubmitTemplate(r.Context(), templateID, req.BusinessAccountID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

type testTemplateRequest struct {
	To string `json:"to"`
}

// SendTest fires an approved template at one recipient so operators can check
// the rendered layout before using it in campaigns.
func (h *TemplateHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuidParam(r, "templateID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	var req testTemplateRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	providerID, err := h.service.SendTest(r.Context(), templateID, req.To)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusAccepted, map[string]any{
		"provider_message_id": providerID,
	})
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuidParam(r, "templateID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	tpl, err := h.service.GetTemplate(r.Context(), templateID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	skip, limit := pagination(r)
	tpls, err := h.service.ListTemplates(r.Context(), channelID, skip, limit)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]templateResponse, 0, len(tpls))
	for _, tpl := range tpls {
		out = append(out, toTemplateResponse(tpl))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuidParam(r, "templateID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.DeleteTemplate(r.Context(), templateID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
