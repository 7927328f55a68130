package api

import (
	"io"
	"net/http"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/messaging"
)

// maxWebhookBody bounds callback payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler serves the provider callback endpoints. Routes are
// channel-scoped; verification uses that channel's own webhook token.
type WebhookHandler struct {
	service *messaging.WebhookService
}

func NewWebhookHandler(service *messaging.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Verify answers the provider's GET subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	q := r.URL.Query()
	challenge, err := h.service.VerifyChallenge(r.Context(), channelID,
		q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	// The provider expects the raw challenge back, not JSON.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive handles the POST callback. Non-200 makes the provider redeliver, so
// only authentication failures are surfaced as errors.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuidParam(r, "channelID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		helpers.RespondError(w, r, domain.Wrap(domain.CodeValidationError, "unreadable body", err))
		return
	}

	if err := h.service.Process(r.Context(), channelID, body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
