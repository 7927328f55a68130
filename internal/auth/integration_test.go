package auth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/config"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end credential flows against a migrated database; set DATABASE_URL
// to run them.
func setupAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := storage.NewPostgres(url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	cfg := &config.Config{
		JWTAlgorithm:    "HS256",
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		JWTIssuer:       "hyrelay-test",
		JWTAudience:     "hyrelay-api",
		AccessTokenTTL:  15 * time.Minute,
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
	}
	tokens, err := auth.NewJWTProvider(cfg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewAuthService(pool, cfg, auth.NewArgon2idHasher(), tokens, audit.NopLogger{}, logger)
}

func provisionTenant(t *testing.T, svc *auth.AuthService) (email, password string) {
	t.Helper()
	id := uuid.New()
	email = fmt.Sprintf("admin-%s@example.com", id)
	password = "correct-horse-battery"

	_, err := svc.ProvisionOrganization(context.Background(), auth.ProvisionInput{
		Name:          "Flow Test",
		Slug:          fmt.Sprintf("flow-%s", id),
		AdminEmail:    email,
		AdminPassword: password,
		AdminName:     "Flow Admin",
	})
	require.NoError(t, err)
	return email, password
}

func TestRefresh_ReplayRevokesWholeFamily(t *testing.T) {
	svc := setupAuthService(t)
	ctx := context.Background()
	email, password := provisionTenant(t, svc)

	first, err := svc.Login(ctx, auth.LoginInput{Email: email, Password: password})
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Replaying the rotated token burns every descendant.
	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.True(t, domain.IsCode(err, domain.CodeTokenRevoked))

	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.True(t, domain.IsCode(err, domain.CodeTokenRevoked))
}

func TestResetPassword_TokenIsSingleUse(t *testing.T) {
	svc := setupAuthService(t)
	ctx := context.Background()
	email, password := provisionTenant(t, svc)

	raw, err := svc.RequestPasswordReset(ctx, email)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	require.NoError(t, svc.ResetPassword(ctx, raw, "a-brand-new-password"))

	err = svc.ResetPassword(ctx, raw, "yet-another-password")
	assert.True(t, domain.IsCode(err, domain.CodeTokenAlreadyUsed))

	_, err = svc.Login(ctx, auth.LoginInput{Email: email, Password: password})
	assert.True(t, domain.IsCode(err, domain.CodeInvalidCredentials))
	_, err = svc.Login(ctx, auth.LoginInput{Email: email, Password: "a-brand-new-password"})
	assert.NoError(t, err)
}

func TestVerifyEmail_MarksTheAddress(t *testing.T) {
	svc := setupAuthService(t)
	ctx := context.Background()
	email, _ := provisionTenant(t, svc)

	raw, err := svc.RequestEmailVerification(ctx, email)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	require.NoError(t, svc.VerifyEmail(ctx, raw))

	err = svc.VerifyEmail(ctx, raw)
	assert.True(t, domain.IsCode(err, domain.CodeTokenAlreadyUsed))
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	svc := setupAuthService(t)
	ctx := context.Background()
	email, password := provisionTenant(t, svc)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, auth.LoginInput{Email: email, Password: "wrong-password"})
		assert.True(t, domain.IsCode(err, domain.CodeInvalidCredentials))
	}

	// Even the correct password is refused while the window is open.
	_, err := svc.Login(ctx, auth.LoginInput{Email: email, Password: password})
	assert.True(t, domain.IsCode(err, domain.CodeAccountLocked))
}
