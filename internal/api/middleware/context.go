// Package middleware holds the HTTP middleware chain: request logging, panic
// recovery, per-IP rate limiting, and the two authentication paths (JWT
// bearer tokens and API keys) that establish the tenant context.
package middleware

import (
	"context"

	"github.com/hyrelay/hyrelay/internal/domain"
)

type contextKey int

const (
	permissionsKey contextKey = iota
	authMethodKey
)

// AuthMethod records how the request authenticated.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

func withPermissions(ctx context.Context, perms []string) context.Context {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return context.WithValue(ctx, permissionsKey, set)
}

// HasPermission reports whether the authenticated principal holds perm.
func HasPermission(ctx context.Context, perm domain.Permission) bool {
	set, ok := ctx.Value(permissionsKey).(map[string]struct{})
	if !ok {
		return false
	}
	_, ok = set[perm.String()]
	return ok
}

func withAuthMethod(ctx context.Context, m AuthMethod) context.Context {
	return context.WithValue(ctx, authMethodKey, m)
}

// MethodFrom returns how the request authenticated, if it did.
func MethodFrom(ctx context.Context) (AuthMethod, bool) {
	m, ok := ctx.Value(authMethodKey).(AuthMethod)
	return m, ok
}
