package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/tenant"
)

// RequirePermission gates a route on one permission. The super_admin role
// bypasses the check; it operates across tenants by definition.
func RequirePermission(perm domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := tenant.From(r.Context())
			if !ok {
				helpers.RespondError(w, r, domain.E(domain.CodeUnauthorized, "authentication required"))
				return
			}
			if tc.IsAdmin() || HasPermission(r.Context(), perm) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("permission denied",
				"permission", perm.String(),
				"user_id", tc.UserID,
				"organization_id", tc.TenantID,
				"path", r.URL.Path)
			helpers.RespondError(w, r, domain.E(domain.CodePermissionDenied, "missing permission").
				WithDetail("permission", perm.String()))
		})
	}
}

// RequireRole gates a route on role hierarchy: the caller's highest role must
// weigh at least as much as required.
func RequireRole(required domain.RoleName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := tenant.From(r.Context())
			if !ok {
				helpers.RespondError(w, r, domain.E(domain.CodeUnauthorized, "authentication required"))
				return
			}
			if domain.HighestRole(tc.Roles).Weight() < required.Weight() {
				slog.Warn("role check failed",
					"required", string(required), "roles", tc.Roles, "path", r.URL.Path)
				helpers.RespondError(w, r, domain.E(domain.CodePermissionDenied, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
