package storage

import (
	"context"
	"time"

	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var singleUseTokenColumns = []string{
	"id", "user_id", "kind", "token_hash", "expires_at", "used_at", "created_at",
}

func singleUseTokenToRow(t *domain.SingleUseToken) []any {
	return []any{t.ID, t.UserID, string(t.Kind), t.TokenHash, t.ExpiresAt, t.UsedAt, t.CreatedAt}
}

func singleUseTokenFromRow(row pgx.Row) (*domain.SingleUseToken, error) {
	var (
		t    domain.SingleUseToken
		kind string
	)
	err := row.Scan(&t.ID, &t.UserID, &kind, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = domain.SingleUseKind(kind)
	return &t, nil
}

// SingleUseTokenRepo persists email verification and password reset tokens.
type SingleUseTokenRepo struct {
	*Repo[*domain.SingleUseToken]
}

// SingleUseTokens returns the repository bound to this unit of work.
func (u *UnitOfWork) SingleUseTokens() *SingleUseTokenRepo {
	return &SingleUseTokenRepo{NewRepo(u, "identity.single_use_tokens", singleUseTokenColumns, false, singleUseTokenToRow, singleUseTokenFromRow)}
}

// GetByHashForUpdate locks the token row so the used_at stamp and the side
// effect commit together exactly once.
func (r *SingleUseTokenRepo) GetByHashForUpdate(ctx context.Context, kind domain.SingleUseKind, hash string) (*domain.SingleUseToken, error) {
	return r.QueryOne(ctx,
		"SELECT "+r.columnList()+" FROM identity.single_use_tokens WHERE kind = $1 AND token_hash = $2 FOR UPDATE",
		string(kind), hash)
}

// DeleteExpired removes tokens past expiry; run by the janitor.
func (r *SingleUseTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.uow.Tx().Exec(ctx,
		"DELETE FROM identity.single_use_tokens WHERE expires_at < $1", now)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
