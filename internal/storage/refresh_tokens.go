package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var refreshTokenColumns = []string{
	"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at",
}

func refreshTokenToRow(t *domain.RefreshToken) []any {
	return []any{t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.RevokedAt, t.CreatedAt}
}

func refreshTokenFromRow(row pgx.Row) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RefreshTokenRepo persists session tokens in identity.refresh_tokens.
// The table hangs off users rather than organizations, so the system unit of
// work used by login flows can reach it; isolation comes from the user FK.
type RefreshTokenRepo struct {
	*Repo[*domain.RefreshToken]
}

// RefreshTokens returns the repository bound to this unit of work.
func (u *UnitOfWork) RefreshTokens() *RefreshTokenRepo {
	return &RefreshTokenRepo{NewRepo(u, "identity.refresh_tokens", refreshTokenColumns, false, refreshTokenToRow, refreshTokenFromRow)}
}

// GetByHashForUpdate locks the token row. Rotation must consume the old token
// and insert its replacement in one transaction, or a concurrent replay can
// split the family history.
func (r *RefreshTokenRepo) GetByHashForUpdate(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	return r.QueryOne(ctx,
		"SELECT "+r.columnList()+" FROM identity.refresh_tokens WHERE token_hash = $1 FOR UPDATE",
		hash)
}

// RevokeAllForUser revokes every live token the user holds (the whole family
// set) and returns how many were touched.
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.uow.Tx().Exec(ctx,
		"UPDATE identity.refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL",
		userID, at)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes tokens past expiry; run by the janitor.
func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.uow.Tx().Exec(ctx,
		"DELETE FROM identity.refresh_tokens WHERE expires_at < $1", now)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
