package storage

import (
	"errors"

	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// constraintCodes maps known unique constraints to specific conflict codes so
// handlers can return duplicate_email instead of a bare conflict.
var constraintCodes = map[string]domain.Code{
	"users_email_key":                 domain.CodeDuplicateEmail,
	"organizations_slug_key":          domain.CodeDuplicateSlug,
	"roles_organization_id_name_key":  domain.CodeDuplicateRoleName,
	"templates_channel_name_lang_key": domain.CodeConflict,
}

// mapError translates driver errors into the domain taxonomy. Callers that
// treat "no rows" as a non-error must check pgx.ErrNoRows before calling.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wrap(domain.CodeNotFound, "row not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		code := domain.CodeConflict
		if mapped, ok := constraintCodes[pgErr.ConstraintName]; ok {
			code = mapped
		}
		return domain.Wrap(code, "unique constraint violated", err)
	}

	return domain.Wrap(domain.CodeInternalError, "storage error", err)
}
