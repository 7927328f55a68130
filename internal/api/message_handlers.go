package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/messaging"
)

// MessageHandler serves the outbound send pipeline and message queries.
type MessageHandler struct {
	service *messaging.SendService
}

func NewMessageHandler(service *messaging.SendService) *MessageHandler {
	return &MessageHandler{service: service}
}

type sendRequest struct {
	ChannelID string          `json:"channel_id"`
	To        string          `json:"to"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
}

type messageResponse struct {
	ID                string          `json:"id"`
	ChannelID         string          `json:"channel_id"`
	Direction         string          `json:"direction"`
	Type              string          `json:"type"`
	From              string          `json:"from"`
	To                string          `json:"to"`
	Content           json.RawMessage `json:"content"`
	Status            string          `json:"status"`
	WhatsAppMessageID string          `json:"whatsapp_message_id,omitempty"`
	RetryCount        int             `json:"retry_count"`
	ErrorCode         string          `json:"error_code,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	StatusUpdatedAt   time.Time       `json:"status_updated_at"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:                m.ID.String(),
		ChannelID:         m.ChannelID.String(),
		Direction:         string(m.Direction),
		Type:              string(m.Type),
		From:              m.FromPhone.String(),
		To:                m.ToPhone.String(),
		Content:           m.Content,
		Status:            string(m.Status),
		WhatsAppMessageID: m.WhatsAppMessageID,
		RetryCount:        m.RetryCount,
		ErrorCode:         m.ErrorCode,
		CreatedAt:         m.CreatedAt,
		StatusUpdatedAt:   m.StatusUpdatedAt,
		DeliveredAt:       m.DeliveredAt,
	}
}

// Send queues one outbound message; delivery is asynchronous. 202 carries the
// queued record.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	channelID, err := parseUUID(req.ChannelID, "channel_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	msg, err := h.service.Send(r.Context(), messaging.SendInput{
		ChannelID: channelID,
		To:        req.To,
		Type:      domain.MessageType(req.Type),
		Content:   req.Content,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusAccepted, toMessageResponse(msg))
}

type bulkSendRequest struct {
	ChannelID  string          `json:"channel_id"`
	Recipients []string        `json:"recipients"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
}

func (h *MessageHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkSendRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	channelID, err := parseUUID(req.ChannelID, "channel_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	results, err := h.service.SendBulk(r.Context(), channelID, req.Recipients,
		domain.MessageType(req.Type), req.Content)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusAccepted, map[string]any{"results": results})
}

func (h *MessageHandler) Retry(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuidParam(r, "messageID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	msg, err := h.service.Retry(r.Context(), messageID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusAccepted, toMessageResponse(msg))
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuidParam(r, "messageID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	msg, err := h.service.GetMessage(r.Context(), messageID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	var channelID *uuid.UUID
	if raw := r.URL.Query().Get("channel_id"); raw != "" {
		id, err := parseUUID(raw, "channel_id")
		if err != nil {
			helpers.RespondError(w, r, err)
			return
		}
		channelID = &id
	}

	msgs, err := h.service.ListMessages(r.Context(), channelID,
		r.URL.Query().Get("direction"), r.URL.Query().Get("status"), skip, limit)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"messages": out})
}
