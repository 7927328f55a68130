package auth

import (
	"context"
	"time"

	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in the same transaction. Presenting a revoked token is
// treated as replay and revokes every live token the user holds, ending all
// sessions descended from the stolen credential.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, domain.E(domain.CodeTokenInvalid, "refresh token is required")
	}
	hash := HashToken(rawToken)

	var (
		pair       *TokenPair
		refreshErr error
	)
	err := storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		token, err := uow.RefreshTokens().GetByHashForUpdate(ctx, hash)
		if err != nil {
			if storage.IsNotFound(err) {
				refreshErr = domain.E(domain.CodeTokenInvalid, "refresh token not recognized")
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		if token.RevokedAt != nil {
			// Replay. Burn the whole family: the legitimate holder will have
			// to log in again, which is the safe outcome.
			n, err := uow.RefreshTokens().RevokeAllForUser(ctx, token.UserID, now)
			if err != nil {
				return err
			}
			s.logger.Warn("refresh token replay detected",
				"user_id", token.UserID, "tokens_revoked", n)
			s.audit.Log(ctx, domain.AuditUnauthorizedAccess, audit.LogParams{
				UserID:       token.UserID,
				ResourceType: "refresh_token",
				ResourceID:   token.ID,
				Metadata:     map[string]any{"reason": "replay", "revoked": n},
			})
			refreshErr = domain.E(domain.CodeTokenRevoked, "refresh token revoked")
			return nil
		}
		if err := token.Validate(now); err != nil {
			refreshErr = err
			return nil
		}

		// The token is the only credential here; the tenant is derived from
		// its holder, so the lookup runs unscoped.
		user, err := uow.Users().GetByIDForAuth(ctx, token.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			refreshErr = domain.E(domain.CodeForbidden, "account is deactivated")
			return nil
		}

		token.Revoke(now)
		if err := uow.RefreshTokens().Update(ctx, token.ID, token); err != nil {
			return err
		}

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

		s.audit.Log(ctx, domain.AuditTokenRefreshed, audit.LogParams{
			OrganizationID: user.OrganizationID,
			UserID:         user.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refreshErr != nil {
		return nil, refreshErr
	}
	return pair, nil
}

// Logout revokes the presented refresh token. Unknown tokens succeed quietly;
// logout is idempotent from the client's point of view.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := HashToken(rawToken)

	return storage.WithSystem(ctx, s.pool, func(uow *storage.UnitOfWork) error {
		token, err := uow.RefreshTokens().GetByHashForUpdate(ctx, hash)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil
			}
			return err
		}
		if token.RevokedAt != nil {
			return nil
		}
		token.Revoke(time.Now().UTC())
		return uow.RefreshTokens().Update(ctx, token.ID, token)
	})
}

// ChangePassword verifies the current password, stores the new hash, and ends
// every session by revoking all refresh tokens.
func (s *AuthService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	return storage.WithTenant(ctx, s.pool, tc, func(uow *storage.UnitOfWork) error {
		user, err := uow.Users().GetByID(ctx, tc.UserID)
		if err != nil {
			return err
		}
		if err := s.hasher.Compare(string(user.PasswordHash), currentPassword); err != nil {
			return domain.E(domain.CodeInvalidCredentials, "current password is incorrect")
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return domain.Wrap(domain.CodeInternalError, "failed to hash password", err)
		}
		if err := user.ChangePassword(domain.PasswordHash(hash)); err != nil {
			return err
		}
		if err := uow.Users().Update(ctx, user.ID, user); err != nil {
			return err
		}
		if _, err := uow.RefreshTokens().RevokeAllForUser(ctx, user.ID, time.Now().UTC()); err != nil {
			return err
		}
		uow.Track(user)

		s.audit.Log(ctx, domain.AuditPasswordChanged, audit.LogParams{
			OrganizationID: tc.TenantID,
			UserID:         tc.UserID,
		})
		return nil
	})
}
