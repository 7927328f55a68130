package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/jackc/pgx/v5"
)

var userColumns = []string{
	"id", "organization_id", "email", "phone", "password_hash", "full_name",
	"is_active", "email_verified", "phone_verified", "last_login_at",
	"failed_login_attempts", "locked_until", "metadata", "created_at", "updated_at",
}

func userToRow(u *domain.User) []any {
	var phone *string
	if u.Phone != nil {
		s := u.Phone.String()
		phone = &s
	}
	metadata, _ := json.Marshal(u.Metadata)
	return []any{
		u.ID, u.OrganizationID, u.Email.String(), phone, string(u.PasswordHash), u.FullName,
		u.IsActive, u.EmailVerified, u.PhoneVerified, u.LastLoginAt,
		u.FailedLoginAttempts, u.LockedUntil, metadata, u.CreatedAt, u.UpdatedAt,
	}
}

func userFromRow(row pgx.Row) (*domain.User, error) {
	var (
		u        domain.User
		email    string
		phone    *string
		hash     string
		metadata []byte
	)
	err := row.Scan(
		&u.ID, &u.OrganizationID, &email, &phone, &hash, &u.FullName,
		&u.IsActive, &u.EmailVerified, &u.PhoneVerified, &u.LastLoginAt,
		&u.FailedLoginAttempts, &u.LockedUntil, &metadata, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Email = domain.Email(email)
	if phone != nil {
		p := domain.Phone(*phone)
		u.Phone = &p
	}
	u.PasswordHash = domain.PasswordHash(hash)
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &u.Metadata)
	}
	return &u, nil
}

// UserRepo persists users in identity.users.
type UserRepo struct {
	*Repo[*domain.User]
}

// Users returns the user repository bound to this unit of work.
func (u *UnitOfWork) Users() *UserRepo {
	return &UserRepo{NewRepo(u, "identity.users", userColumns, true, userToRow, userFromRow)}
}

// GetByEmailForUpdate fetches a user by email with a row lock, so the failed
// login counter cannot race between concurrent attempts. The lookup crosses
// tenants because the tenant is derived from the user during login; the
// caller must run on a system unit of work.
func (r *UserRepo) GetByEmailForUpdate(ctx context.Context, email domain.Email) (*domain.User, error) {
	sql := "SELECT " + r.columnList() + " FROM identity.users WHERE email = $1 FOR UPDATE"
	user, err := userFromRow(r.uow.Tx().QueryRow(ctx, sql, email.String()))
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// GetByIDForAuth resolves the holder of a credential (refresh token, reset
// token, verification token) before any tenant is known. The caller must run
// on a system unit of work and apply the user's tenant before any scoped
// operation.
func (r *UserRepo) GetByIDForAuth(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	sql := "SELECT " + r.columnList() + " FROM identity.users WHERE id = $1"
	user, err := userFromRow(r.uow.Tx().QueryRow(ctx, sql, id))
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// GetByEmail fetches a user by email within the current tenant scope.
func (r *UserRepo) GetByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	return r.FindOne(ctx, Filters{"email": email.String()})
}

// ListByOrganization pages users for admin views.
func (r *UserRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID, skip, limit int) ([]*domain.User, error) {
	return r.FindAll(ctx, Filters{"organization_id": orgID}, skip, limit, "created_at DESC")
}

// TouchLastLogin updates only the login bookkeeping columns.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.uow.Tx().Exec(ctx,
		"UPDATE identity.users SET last_login_at = $2, failed_login_attempts = 0, locked_until = NULL, updated_at = $2 WHERE id = $1",
		id, at)
	return mapError(err)
}
