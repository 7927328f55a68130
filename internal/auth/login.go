package auth

import (
	"context"
	"time"

	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// dummyHash keeps password comparison time flat when the email is unknown,
// so response timing does not reveal account existence.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$XcmpSGa1YzRr8gUKapDI/iXP0ZXPZ3vOhgFR+91c/V8"

// RegisterInput carries the fields needed to create a user.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Register creates a user inside the caller's organization and assigns the
// read_only role. The tenant context must already be on ctx.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	email, err := domain.NewEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to hash password", err)
	}

	user, err := domain.NewUser(tc.TenantID, email, domain.PasswordHash(hash), in.FullName)
	if err != nil {
		return nil, err
	}

	err = storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		if err := uow.Users().Add(ctx, user); err != nil {
			return err
		}
		role, err := uow.Roles().GetByName(ctx, tc.TenantID, string(domain.RoleReadOnly))
		if err != nil {
			return err
		}
		if err := uow.Roles().Assign(ctx, domain.UserRole{
			UserID:    user.ID,
			RoleID:    role.ID,
			GrantedAt: time.Now().UTC(),
			GrantedBy: tc.UserID,
		}); err != nil {
			return err
		}
		uow.Track(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditUserCreated, audit.LogParams{
		OrganizationID: tc.TenantID,
		UserID:         tc.UserID,
		ResourceType:   "user",
		ResourceID:     user.ID,
	})
	return user, nil
}

// LoginInput carries credentials plus request metadata for the audit trail.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Login authenticates credentials and returns a token pair. Failed attempts
// increment a per-user counter under a row lock; reaching the threshold opens
// a lockout window. All credential failures surface as invalid_credentials so
// the response does not reveal which part was wrong.
//
// The failure bookkeeping must commit even though the login fails, so the
// transaction closure records the outcome instead of returning it.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	email, err := domain.NewEmail(in.Email)
	if err != nil {
		_ = s.hasher.Compare(dummyHash, in.Password)
		return nil, domain.E(domain.CodeInvalidCredentials, "invalid email or password")
	}

	var (
		pair     *TokenPair
		loginErr error
	)
	err = storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		user, err := uow.Users().GetByEmailForUpdate(ctx, email)
		if err != nil {
			if storage.IsNotFound(err) {
				_ = s.hasher.Compare(dummyHash, in.Password)
				loginErr = domain.E(domain.CodeInvalidCredentials, "invalid email or password")
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		if user.IsLocked(now) {
			s.audit.Log(ctx, domain.AuditLoginFailed, audit.LogParams{
				OrganizationID: user.OrganizationID,
				UserID:         user.ID,
				IPAddress:      in.IPAddress,
				UserAgent:      in.UserAgent,
				Metadata:       map[string]any{"reason": "locked"},
			})
			loginErr = domain.E(domain.CodeAccountLocked, "account temporarily locked").
				WithDetail("locked_until", user.LockedUntil.UTC().Format(time.RFC3339))
			return nil
		}
		if !user.IsActive {
			_ = s.hasher.Compare(dummyHash, in.Password)
			loginErr = domain.E(domain.CodeInvalidCredentials, "invalid email or password")
			return nil
		}

		if err := s.hasher.Compare(string(user.PasswordHash), in.Password); err != nil {
			user.RecordFailedLogin(s.cfg.MaxFailedLogins, s.cfg.LockoutDuration)
			if err := s.persistLoginAttempt(ctx, uow, user); err != nil {
				return err
			}
			uow.Track(user)

			action := domain.AuditLoginFailed
			if user.LockedUntil != nil {
				action = domain.AuditUserLocked
			}
			s.audit.Log(ctx, action, audit.LogParams{
				OrganizationID: user.OrganizationID,
				UserID:         user.ID,
				IPAddress:      in.IPAddress,
				UserAgent:      in.UserAgent,
			})
			loginErr = domain.E(domain.CodeInvalidCredentials, "invalid email or password")
			return nil
		}

		user.RecordSuccessfulLogin(in.IPAddress)
		if err := s.persistLoginAttempt(ctx, uow, user); err != nil {
			return err
		}

		// The rest of the flow runs under the user's tenant.
		if err := uow.SetTenantContext(ctx, tenant.Context{TenantID: user.OrganizationID, UserID: user.ID}); err != nil {
			return err
		}
		view, err := loadRoleView(ctx, uow, user)
		if err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, uow, user, view)
		if err != nil {
			return err
		}
		uow.Track(user)

		s.audit.Log(ctx, domain.AuditLoginSuccess, audit.LogParams{
			OrganizationID: user.OrganizationID,
			UserID:         user.ID,
			IPAddress:      in.IPAddress,
			UserAgent:      in.UserAgent,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loginErr != nil {
		return nil, loginErr
	}
	return pair, nil
}

// persistLoginAttempt writes only the counter columns, leaving the rest of
// the row untouched.
func (s *AuthService) persistLoginAttempt(ctx context.Context, uow *storage.UnitOfWork, user *domain.User) error {
	_, err := uow.Tx().Exec(ctx, `
		UPDATE identity.users
		SET failed_login_attempts = $2, locked_until = $3, last_login_at = $4, updated_at = $5
		WHERE id = $1
	`, user.ID, user.FailedLoginAttempts, user.LockedUntil, user.LastLoginAt, user.UpdatedAt)
	return err
}
