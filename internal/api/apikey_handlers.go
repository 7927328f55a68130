package api

import (
	"net/http"
	"time"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// APIKeyHandler serves machine credential management.
type APIKeyHandler struct {
	service *auth.AuthService
}

func NewAPIKeyHandler(service *auth.AuthService) *APIKeyHandler {
	return &APIKeyHandler{service: service}
}

type createAPIKeyRequest struct {
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type apiKeyResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	KeyPrefix   string     `json:"key_prefix"`
	Permissions []string   `json:"permissions"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAPIKeyResponse(k *domain.APIKey) apiKeyResponse {
	perms := make([]string, 0, len(k.Permissions))
	for _, p := range k.Permissions {
		perms = append(perms, p.String())
	}
	return apiKeyResponse{
		ID:          k.ID.String(),
		Name:        k.Name,
		KeyPrefix:   k.KeyPrefix,
		Permissions: perms,
		LastUsedAt:  k.LastUsedAt,
		ExpiresAt:   k.ExpiresAt,
		IsActive:    k.IsActive,
		CreatedAt:   k.CreatedAt,
	}
}

// Create mints a key. The plaintext key appears in this response and nowhere
// else, ever.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	created, err := h.service.CreateAPIKey(r.Context(), auth.CreateAPIKeyInput{
		Name:        req.Name,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, map[string]any{
		"api_key": toAPIKeyResponse(created.Key),
		"key":     created.RawKey,
	})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	keyID, err := uuidParam(r, "keyID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.RevokeAPIKey(r.Context(), keyID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	keys, err := h.service.ListAPIKeys(r.Context(), skip, limit)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"api_keys": out})
}
