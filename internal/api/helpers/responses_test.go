package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[domain.Code]int{
		domain.CodeValidationError:      http.StatusBadRequest,
		domain.CodeInvalidCredentials:   http.StatusUnauthorized,
		domain.CodeTokenExpired:         http.StatusUnauthorized,
		domain.CodeTokenRevoked:         http.StatusUnauthorized,
		domain.CodeForbidden:            http.StatusForbidden,
		domain.CodePermissionDenied:     http.StatusForbidden,
		domain.CodeAccountLocked:        http.StatusForbidden,
		domain.CodeTenantContextMissing: http.StatusInternalServerError,
		domain.CodeNotFound:             http.StatusNotFound,
		domain.CodeDuplicateEmail:       http.StatusConflict,
		domain.CodeRateLimited:          http.StatusTooManyRequests,
		domain.CodeProviderError:        http.StatusBadGateway,
		domain.CodeInternalError:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), "code %s", code)
	}
}

// A missing tenant context is a server defect. The response must read as an
// internal error and the original message must not reach the client.
func TestRespondError_MasksMissingTenantContext(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)

	RespondError(rec, req, domain.E(domain.CodeTenantContextMissing,
		"tenant-scoped query on identity.users without tenant context"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var env struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, string(domain.CodeTenantContextMissing), env.Code)
	assert.Equal(t, "internal server error", env.Message)
}

func TestRespondError_AccountLockedKeepsDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	RespondError(rec, req, domain.E(domain.CodeAccountLocked, "account temporarily locked").
		WithDetail("locked_until", "2026-09-01T00:00:00Z"))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var env struct {
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "account temporarily locked", env.Message)
	assert.Equal(t, "2026-09-01T00:00:00Z", env.Details["locked_until"])
}
