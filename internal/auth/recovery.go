package auth

import (
	"context"
	"time"

	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

const (
	passwordResetTTL     = 15 * time.Minute
	emailVerificationTTL = 24 * time.Hour
)

// RequestPasswordReset starts the reset flow and returns the raw token for
// out-of-band delivery. Unknown addresses return an empty token and nil: the
// response never reveals whether the account exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, rawEmail string) (string, error) {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return "", nil
	}

	raw, err := GenerateSecureToken(32)
	if err != nil {
		return "", domain.Wrap(domain.CodeInternalError, "failed to generate token", err)
	}

	var issued bool
	err = storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		user, err := uow.Users().GetByEmailForUpdate(ctx, email)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil
			}
			return err
		}
		if !user.IsActive {
			return nil
		}
		token := domain.NewSingleUseToken(user.ID, domain.SingleUsePasswordReset, HashToken(raw), passwordResetTTL)
		if err := uow.SingleUseTokens().Add(ctx, token); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !issued {
		return "", nil
	}
	return raw, nil
}

// ResetPassword consumes a reset token, stores the new hash, and revokes all
// refresh tokens. Expiry is checked before reuse, so an expired token replayed
// later still reads as expired.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash := HashToken(rawToken)

	return storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		token, err := uow.SingleUseTokens().GetByHashForUpdate(ctx, domain.SingleUsePasswordReset, hash)
		if err != nil {
			if storage.IsNotFound(err) {
				return domain.E(domain.CodeTokenInvalid, "reset token not recognized")
			}
			return err
		}
		if err := token.Consume(time.Now().UTC()); err != nil {
			return err
		}
		if err := uow.SingleUseTokens().Update(ctx, token.ID, token); err != nil {
			return err
		}

		// The token is the only credential; its holder determines the tenant.
		user, err := uow.Users().GetByIDForAuth(ctx, token.UserID)
		if err != nil {
			return err
		}
		if err := uow.SetTenantContext(ctx, tenant.Context{TenantID: user.OrganizationID, UserID: user.ID}); err != nil {
			return err
		}
		newHash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return domain.Wrap(domain.CodeInternalError, "failed to hash password", err)
		}
		if err := user.ChangePassword(domain.PasswordHash(newHash)); err != nil {
			return err
		}
		if err := uow.Users().Update(ctx, user.ID, user); err != nil {
			return err
		}
		if _, err := uow.RefreshTokens().RevokeAllForUser(ctx, user.ID, time.Now().UTC()); err != nil {
			return err
		}
		uow.Track(user)

		s.audit.Log(ctx, domain.AuditPasswordReset, audit.LogParams{
			OrganizationID: user.OrganizationID,
			UserID:         user.ID,
		})
		return nil
	})
}

// RequestEmailVerification issues a verification token for the address,
// returning the raw token for out-of-band delivery. Already verified accounts
// and unknown addresses return empty without error.
func (s *AuthService) RequestEmailVerification(ctx context.Context, rawEmail string) (string, error) {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return "", nil
	}

	raw, err := GenerateSecureToken(32)
	if err != nil {
		return "", domain.Wrap(domain.CodeInternalError, "failed to generate token", err)
	}

	var issued bool
	err = storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		user, err := uow.Users().GetByEmailForUpdate(ctx, email)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil
			}
			return err
		}
		if !user.IsActive || user.EmailVerified {
			return nil
		}
		token := domain.NewSingleUseToken(user.ID, domain.SingleUseEmailVerification, HashToken(raw), emailVerificationTTL)
		if err := uow.SingleUseTokens().Add(ctx, token); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !issued {
		return "", nil
	}
	return raw, nil
}

// VerifyEmail consumes a verification token and marks the address verified.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	hash := HashToken(rawToken)

	return storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		token, err := uow.SingleUseTokens().GetByHashForUpdate(ctx, domain.SingleUseEmailVerification, hash)
		if err != nil {
			if storage.IsNotFound(err) {
				return domain.E(domain.CodeTokenInvalid, "verification token not recognized")
			}
			return err
		}
		if err := token.Consume(time.Now().UTC()); err != nil {
			return err
		}
		if err := uow.SingleUseTokens().Update(ctx, token.ID, token); err != nil {
			return err
		}

		user, err := uow.Users().GetByIDForAuth(ctx, token.UserID)
		if err != nil {
			return err
		}
		if err := uow.SetTenantContext(ctx, tenant.Context{TenantID: user.OrganizationID, UserID: user.ID}); err != nil {
			return err
		}
		user.VerifyEmail()
		if err := uow.Users().Update(ctx, user.ID, user); err != nil {
			return err
		}
		uow.Track(user)

		s.audit.Log(ctx, domain.AuditEmailVerified, audit.LogParams{
			OrganizationID: user.OrganizationID,
			UserID:         user.ID,
		})
		return nil
	})
}
