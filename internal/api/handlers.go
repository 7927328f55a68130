// Package api wires the HTTP surface: routing, middleware, and handlers that
// translate between the wire and the services.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// pagination reads skip/limit query parameters with sane bounds.
func pagination(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return skip, limit
}

// uuidParam parses a UUID route parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return parseUUID(chi.URLParam(r, name), name)
}

func parseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.E(domain.CodeValidationError, "invalid "+name)
	}
	return id, nil
}
