package api

import (
	"net/http"
	"time"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/messaging"
)

// ChannelHandler serves WhatsApp channel management. Credentials go in, never
// come back out.
type ChannelHandler struct {
	service *messaging.ChannelService
}

func NewChannelHandler(service *messaging.ChannelService) *ChannelHandler {
	return &ChannelHandler{service: service}
}

type createChannelRequest struct {
	PhoneNumberID       string `json:"phone_number_id"`
	BusinessPhone       string `json:"business_phone"`
	AccessToken         string `json:"access_token"`
	WebhookVerifyToken  string `json:"webhook_verify_token"`
	RateLimitPerSecond  int    `json:"rate_limit_per_second"`
	MonthlyMessageLimit int64  `json:"monthly_message_limit"`
}

type channelResponse struct {
	ID                  string    `json:"id"`
	PhoneNumberID       string    `json:"phone_number_id"`
	BusinessPhone       string    `json:"business_phone"`
	RateLimitPerSecond  int       `json:"rate_limit_per_second"`
	MonthlyMessageLimit int64     `json:"monthly_message_limit"`
	IsActive            bool      `json:"is_active"`
	IsSuspended         bool      `json:"is_suspended"`
	MessagesThisMonth   int64     `json:"messages_this_month"`
	CreatedAt           time.Time `json:"created_at"`
}

func toChannelResponse(ch *domain.Channel) channelResponse {
	return channelResponse{
		ID:                  ch.ID.String(),
		PhoneNumberID:       ch.PhoneNumberID,
		BusinessPhone:       ch.BusinessPhone.String(),
		RateLimitPerSecond:  ch.RateLimitPerSecond,
		MonthlyMessageLimit: ch.MonthlyMessageLimit,
		IsActive:            ch.IsActive,
		IsSuspended:         ch.IsSuspended,
		MessagesThisMonth:   ch.MessagesThisMonth,
		CreatedAt:           ch.CreatedAt,
	}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	ch, err := h.service.CreateChannel(r.Context(), messaging.CreateChannelInput{
		PhoneNumberID:       req.PhoneNumberID,
		BusinessPhone:       req.BusinessPhone,
		AccessToken:         req.AccessToken,
		WebhookVerifyToken:  req.WebhookVerifyToken,
		RateLimitPerSecond:  req.RateLimitPerSecond,
		MonthlyMessageLimit: req.MonthlyMessageLimit,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, toChannelResponse(ch))
}

type updateChannelRequest struct {
	AccessToken         string `json:"access_token,omitempty"`
	WebhookVerifyToken  string `json:"webhook_verify_token,omitempty"`
	RateLimitPerSecond  int    `json:"rate_limit_per_second,omitempty"`
	MonthlyMessageLimit *int64 `json:"monthly_message_limit,omitempty"`
}

func (h *ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	var req updateChannelRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	ch, err := h.service.UpdateChannel(r.Context(), channelID, messaging.UpdateChannelInput{
		AccessToken:         req.AccessToken,
		WebhookVerifyToken:  req.WebhookVerifyToken,
		RateLimitPerSecond:  req.RateLimitPerSecond,
		MonthlyMessageLimit: req.MonthlyMessageLimit,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toChannelResponse(ch))
}

func (h *ChannelHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.DeactivateChannel(r.Context(), channelID, "deactivated by operator"); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	ch, err := h.service.GetChannel(r.Context(), channelID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toChannelResponse(ch))
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	channels, err := h.service.ListChannels(r.Context(), skip, limit)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toChannelResponse(ch))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"channels": out})
}
