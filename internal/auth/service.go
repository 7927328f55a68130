package auth

import (
	"context"
	"log/slog"

	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/config"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthService orchestrates the identity flows over the storage layer.
type AuthService struct {
	pool   *pgxpool.Pool
	cfg    *config.Config
	hasher PasswordHasher
	tokens TokenProvider
	audit  audit.Service
	logger *slog.Logger
}

// NewAuthService wires the service.
func NewAuthService(pool *pgxpool.Pool, cfg *config.Config, hasher PasswordHasher, tokens TokenProvider, auditor audit.Service, logger *slog.Logger) *AuthService {
	return &AuthService{
		pool:   pool,
		cfg:    cfg,
		hasher: hasher,
		tokens: tokens,
		audit:  auditor,
		logger: logger.With("component", "auth"),
	}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// roleView is the flattened authorization snapshot embedded in access tokens.
type roleView struct {
	Names       []string
	Permissions []string
}

func loadRoleView(ctx context.Context, uow *storage.UnitOfWork, user *domain.User) (roleView, error) {
	roles, err := uow.Roles().ListForUser(ctx, user.ID)
	if err != nil {
		return roleView{}, err
	}

	var view roleView
	var perms []domain.Permission
	for _, r := range roles {
		view.Names = append(view.Names, r.Name)
		perms = append(perms, r.Permissions...)
	}
	for _, p := range domain.UnionPermissions(perms) {
		view.Permissions = append(view.Permissions, p.String())
	}
	return view, nil
}

// issueTokens mints the access token and persists a hashed refresh token in
// the caller's transaction.
func (s *AuthService) issueTokens(ctx context.Context, uow *storage.UnitOfWork, user *domain.User, view roleView) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user, view.Names, view.Permissions)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to issue access token", err)
	}

	refresh, err := GenerateSecureToken(32)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternalError, "failed to generate refresh token", err)
	}
	if err := uow.RefreshTokens().Add(ctx, domain.NewRefreshToken(user.ID, HashToken(refresh))); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}
