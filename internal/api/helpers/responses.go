package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyrelay/hyrelay/internal/domain"
)

// errorEnvelope is the wire form of every error response.
type errorEnvelope struct {
	Code    domain.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// statusFor maps domain codes to HTTP status. Unknown errors read as 500.
func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeValidationError:
		return http.StatusBadRequest
	case domain.CodeInvalidCredentials, domain.CodeUnauthorized,
		domain.CodeTokenInvalid, domain.CodeTokenExpired,
		domain.CodeTokenRevoked, domain.CodeTokenAlreadyUsed,
		domain.CodeAPIKeyExpired, domain.CodeAPIKeyRevoked:
		return http.StatusUnauthorized
	case domain.CodeForbidden, domain.CodePermissionDenied,
		domain.CodeAccountLocked:
		return http.StatusForbidden
	case domain.CodeTenantContextMissing:
		// A scoped query ran without tenant isolation. That is a server bug,
		// not a client authentication problem.
		return http.StatusInternalServerError
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeDuplicateEmail,
		domain.CodeDuplicateSlug, domain.CodeDuplicateRoleName:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondError translates a service error into the error envelope. Internal
// errors are logged server-side and surface as a generic message so causes
// never leak to clients.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)

	env := errorEnvelope{Code: code, Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		env.Message = de.Message
		env.Details = de.Details
	}

	if code == domain.CodeInternalError || code == domain.CodeTenantContextMissing {
		slog.ErrorContext(r.Context(), "internal error",
			"error", err, "path", r.URL.Path, "method", r.Method)
		env.Message = "internal server error"
		env.Details = nil
	}

	RespondJSON(w, statusFor(code), env)
}
