// Package whatsapp is the thin client for the WhatsApp Cloud API. It knows
// wire shapes and error translation; all policy lives in the messaging layer.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hyrelay/hyrelay/internal/domain"
)

// Provider abstracts the Cloud API for the send pipeline and tests.
type Provider interface {
	SendMessage(ctx context.Context, accessToken, phoneNumberID string, payload SendPayload) (string, error)
	GetMediaURL(ctx context.Context, accessToken, mediaID string) (string, error)
	SubmitTemplate(ctx context.Context, accessToken, businessAccountID string, tpl TemplateSubmission) (string, error)
}

// SendPayload is the outbound message body. Content carries the type-specific
// object (text, image, template) already shaped by the caller.
type SendPayload struct {
	To      string
	Type    string
	Content json.RawMessage
}

// TemplateSubmission is the template review request.
type TemplateSubmission struct {
	Name       string
	Language   string
	Category   string
	Components json.RawMessage
}

// APIError is a provider rejection with the upstream code preserved, so the
// status reconciliation policy can act on it.
type APIError struct {
	StatusCode int
	Code       int
	Subcode    int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the Graph API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client with a hard 30s request timeout.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "whatsapp_client"),
	}
}

type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendMessage posts one outbound message and returns the provider message id.
func (c *Client) SendMessage(ctx context.Context, accessToken, phoneNumberID string, payload SendPayload) (string, error) {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                payload.To,
		"type":              payload.Type,
		payload.Type:        payload.Content,
	}

	var resp sendResponse
	err := c.post(ctx, accessToken, fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID), body, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", domain.E(domain.CodeProviderError, "provider accepted the message but returned no id")
	}
	return resp.Messages[0].ID, nil
}

// GetMediaURL resolves a media id to its short-lived download URL.
func (c *Client) GetMediaURL(ctx context.Context, accessToken, mediaID string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.get(ctx, accessToken, fmt.Sprintf("%s/%s", c.baseURL, mediaID), &resp)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

// SubmitTemplate sends a template for provider review and returns the
// provider template id.
func (c *Client) SubmitTemplate(ctx context.Context, accessToken, businessAccountID string, tpl TemplateSubmission) (string, error) {
	body := map[string]any{
		"name":       tpl.Name,
		"language":   tpl.Language,
		"category":   tpl.Category,
		"components": tpl.Components,
	}

	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, accessToken, fmt.Sprintf("%s/%s/message_templates", c.baseURL, businessAccountID), body, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, accessToken, url string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return domain.Wrap(domain.CodeInternalError, "failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return domain.Wrap(domain.CodeInternalError, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, accessToken, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Wrap(domain.CodeInternalError, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Wrap(domain.CodeProviderError, "provider request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Wrap(domain.CodeProviderError, "failed to read provider response", err)
	}

	if resp.StatusCode >= 400 {
		var ge graphError
		_ = json.Unmarshal(raw, &ge)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Code:       ge.Error.Code,
			Subcode:    ge.Error.ErrorSubcode,
			Message:    ge.Error.Message,
		}
		c.logger.Warn("provider rejected request",
			"status", resp.StatusCode,
			"provider_code", ge.Error.Code,
			"message", ge.Error.Message)
		return domain.Wrap(domain.CodeProviderError, "provider rejected the request", apiErr).
			WithDetail("provider_code", strconv.Itoa(ge.Error.Code))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return domain.Wrap(domain.CodeProviderError, "malformed provider response", err)
		}
	}
	return nil
}
