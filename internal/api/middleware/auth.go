package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// apiKeyHeader carries machine credentials; bearer tokens carry user sessions.
const apiKeyHeader = "X-API-Key"

// Authenticator validates either a JWT bearer token or an API key and
// establishes the tenant context for everything downstream. Requests carrying
// neither credential are rejected.
func Authenticator(tokens auth.TokenProvider, keys *auth.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rawKey := r.Header.Get(apiKeyHeader); rawKey != "" {
				authenticateAPIKey(w, r, next, keys, rawKey)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				helpers.RespondError(w, r, domain.E(domain.CodeUnauthorized, "authorization required"))
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				helpers.RespondError(w, r, domain.E(domain.CodeUnauthorized, "malformed authorization header"))
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				slog.Warn("token rejected", "error", err, "ip", helpers.GetRealIP(r))
				helpers.RespondError(w, r, err)
				return
			}

			tc := tenant.Context{
				TenantID:  claims.OrganizationID,
				UserID:    claims.UserID,
				Roles:     claims.Roles,
				RequestID: chimiddleware.GetReqID(r.Context()),
			}
			ctx := tenant.With(r.Context(), tc)
			ctx = withPermissions(ctx, claims.Permissions)
			ctx = withAuthMethod(ctx, AuthMethodJWT)
			tagSentry(ctx, tc)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticateAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, keys *auth.AuthService, rawKey string) {
	key, err := keys.AuthenticateAPIKey(r.Context(), rawKey)
	if err != nil {
		slog.Warn("api key rejected", "error", err, "ip", helpers.GetRealIP(r))
		helpers.RespondError(w, r, err)
		return
	}

	tc := tenant.Context{
		TenantID:  key.OrganizationID,
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
	if key.UserID != nil {
		tc.UserID = *key.UserID
	}

	perms := make([]string, 0, len(key.Permissions))
	for _, p := range key.Permissions {
		perms = append(perms, p.String())
	}

	ctx := tenant.With(r.Context(), tc)
	ctx = withPermissions(ctx, perms)
	ctx = withAuthMethod(ctx, AuthMethodAPIKey)
	tagSentry(ctx, tc)

	next.ServeHTTP(w, r.WithContext(ctx))
}

// tagSentry attaches the tenant and user to any Sentry event raised later in
// the request.
func tagSentry(ctx context.Context, tc tenant.Context) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	hub.Scope().SetTag("organization_id", tc.TenantID.String())
	if tc.UserID != uuid.Nil {
		hub.Scope().SetUser(sentry.User{ID: tc.UserID.String()})
	}
}
