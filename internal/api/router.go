package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	custommw "github.com/hyrelay/hyrelay/internal/api/middleware"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/messaging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Services bundles everything the router wires up.
type Services struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Tokens    auth.TokenProvider
	Auth      *auth.AuthService
	RBAC      *auth.RBACService
	Channels  *messaging.ChannelService
	Send      *messaging.SendService
	Templates *messaging.TemplateService
	Webhooks  *messaging.WebhookService
}

// NewRouter builds the full HTTP surface.
func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(custommw.RequestLogger)
	r.Use(custommw.PanicRecovery)

	ipLimiter := custommw.NewIPRateLimiter(10, 20)
	r.Use(ipLimiter.Middleware)

	requireAuth := custommw.Authenticator(s.Tokens, s.Auth)

	authHandler := NewAuthHandler(s.Auth)
	orgHandler := NewOrgHandler(s.Auth)
	roleHandler := NewRoleHandler(s.RBAC)
	keyHandler := NewAPIKeyHandler(s.Auth)
	channelHandler := NewChannelHandler(s.Channels)
	messageHandler := NewMessageHandler(s.Send)
	templateHandler := NewTemplateHandler(s.Templates)
	webhookHandler := NewWebhookHandler(s.Webhooks)
	healthHandler := NewHealthHandler(s.Pool, s.Redis)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	// Provider callbacks authenticate with the channel's webhook token, not a
	// bearer credential.
	r.Route("/webhooks/whatsapp/{channelID}", func(r chi.Router) {
		r.Get("/", webhookHandler.Verify)
		r.Post("/", webhookHandler.Receive)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface.
		r.Post("/organizations", orgHandler.Provision)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/password/forgot", authHandler.RequestPasswordReset)
		r.Post("/auth/password/reset", authHandler.ResetPassword)
		r.Post("/auth/email/request-verification", authHandler.RequestEmailVerification)
		r.Post("/auth/email/verify", authHandler.VerifyEmail)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.Put("/auth/password", authHandler.ChangePassword)

			r.Get("/organization", orgHandler.Get)
			r.With(custommw.RequireRole(domain.RoleTenantAdmin)).
				Patch("/organization", orgHandler.Update)
			r.Get("/organizations/{orgID}", orgHandler.GetByID)
			r.With(custommw.RequireRole(domain.RoleSuperAdmin)).
				Delete("/organizations/{orgID}", orgHandler.Deactivate)

			r.Route("/users", func(r chi.Router) {
				r.With(custommw.RequirePermission("users:write")).
					Post("/", authHandler.Register)
				r.With(custommw.RequirePermission("users:write")).
					Post("/{userID}/roles", roleHandler.Assign)
				r.With(custommw.RequirePermission("users:write")).
					Delete("/{userID}/roles/{roleID}", roleHandler.Revoke)
				r.With(custommw.RequirePermission("users:delete")).
					Delete("/{userID}", roleHandler.DeactivateUser)
			})

			r.Route("/roles", func(r chi.Router) {
				r.With(custommw.RequirePermission("roles:read")).
					Get("/", roleHandler.List)
				r.With(custommw.RequirePermission("roles:read")).
					Get("/users/{userID}", roleHandler.ListForUser)
				r.With(custommw.RequirePermission("roles:write")).
					Post("/", roleHandler.Create)
				r.With(custommw.RequirePermission("roles:write")).
					Patch("/{roleID}", roleHandler.Update)
				r.With(custommw.RequirePermission("roles:write")).
					Delete("/{roleID}", roleHandler.Delete)
			})

			r.Route("/api-keys", func(r chi.Router) {
				r.With(custommw.RequirePermission("api_keys:read")).
					Get("/", keyHandler.List)
				r.With(custommw.RequirePermission("api_keys:write")).
					Post("/", keyHandler.Create)
				r.With(custommw.RequirePermission("api_keys:write")).
					Delete("/{keyID}", keyHandler.Revoke)
			})

			r.Route("/channels", func(r chi.Router) {
				r.With(custommw.RequirePermission("channels:read")).
					Get("/", channelHandler.List)
				r.With(custommw.RequirePermission("channels:write")).
					Post("/", channelHandler.Create)
				r.With(custommw.RequirePermission("channels:read")).
					Get("/{channelID}", channelHandler.Get)
				r.With(custommw.RequirePermission("channels:write")).
					Patch("/{channelID}", channelHandler.Update)
				r.With(custommw.RequirePermission("channels:delete")).
					Delete("/{channelID}", channelHandler.Deactivate)
				r.With(custommw.RequirePermission("templates:read")).
					Get("/{channelID}/templates", templateHandler.List)
			})

			r.Route("/messages", func(r chi.Router) {
				r.With(custommw.RequirePermission("messages:read")).
					Get("/", messageHandler.List)
				r.With(custommw.RequirePermission("messages:send")).
					Post("/", messageHandler.Send)
				r.With(custommw.RequirePermission("messages:send")).
					Post("/bulk", messageHandler.SendBulk)
				r.With(custommw.RequirePermission("messages:read")).
					Get("/{messageID}", messageHandler.Get)
				r.With(custommw.RequirePermission("messages:send")).
					Post("/{messageID}/retry", messageHandler.Retry)
			})

			r.Route("/templates", func(r chi.Router) {
				r.With(custommw.RequirePermission("templates:write")).
					Post("/", templateHandler.Create)
				r.With(custommw.RequirePermission("templates:read")).
					Get("/{templateID}", templateHandler.Get)
				r.With(custommw.RequirePermission("templates:write")).
					Post("/{templateID}/submit", templateHandler.Submit)
				r.With(custommw.RequirePermission("messages:send")).
					Post("/{templateID}/test", templateHandler.SendTest)
				r.With(custommw.RequirePermission("templates:write")).
					Delete("/{templateID}", templateHandler.Delete)
			})

			r.With(custommw.RequirePermission("audit_logs:read")).
				Get("/audit-logs", NewAuditHandler(s.Pool).List)
		})
	})

	return r
}
