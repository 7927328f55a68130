package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/hyrelay/hyrelay/internal/domain"
)

// maxBodyBytes caps request bodies; none of our payloads come close.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes a request body with strict validation: unknown fields
// are rejected and bodies over 1 MiB are cut off.
func DecodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Wrap(domain.CodeValidationError, "invalid request body", err)
	}
	return nil
}
