package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hyrelay/hyrelay/internal/api"
	"github.com/hyrelay/hyrelay/internal/audit"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/config"
	"github.com/hyrelay/hyrelay/internal/crypto"
	"github.com/hyrelay/hyrelay/internal/messaging"
	"github.com/hyrelay/hyrelay/internal/ratelimit"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
	"github.com/hyrelay/hyrelay/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Missing files are fine; production relies on real env vars.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg.Env, "hyrelay-api")
	log.Info("application_startup", "env", cfg.Env)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			TracesSampleRate: 0.2,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()

	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Error("database_ping_failed", "error", err)
		os.Exit(1)
	}
	log.Info("database_connected")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("redis_url_parse_failed", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	box, err := crypto.NewSecretBox(cfg.ChannelSecretKey)
	if err != nil {
		log.Error("secret_key_invalid", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewJWTProvider(&cfg)
	if err != nil {
		log.Error("jwt_provider_init_failed", "error", err)
		os.Exit(1)
	}

	auditor := audit.NewDBLogger(pool, log)
	hasher := auth.NewArgon2idHasher()
	authService := auth.NewAuthService(pool, &cfg, hasher, tokens, auditor, log)
	rbacService := auth.NewRBACService(pool, auditor, log)

	limiter := ratelimit.NewLimiter(rdb)
	window := messaging.NewServiceWindow(rdb, log)
	provider := whatsapp.NewClient(cfg.WhatsAppBaseURL, log)

	channelService := messaging.NewChannelService(pool, box, auditor, log)
	sendService := messaging.NewSendService(pool, limiter, window, provider, box, log)
	templateService := messaging.NewTemplateService(pool, provider, box, log)
	webhookService := messaging.NewWebhookService(pool, rdb, box, window, limiter, auditor, log)

	router := api.NewRouter(api.Services{
		Pool:      pool,
		Redis:     rdb,
		Tokens:    tokens,
		Auth:      authService,
		RBAC:      rbacService,
		Channels:  channelService,
		Send:      sendService,
		Templates: templateService,
		Webhooks:  webhookService,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			_ = srv.Close()
		}
		log.Info("server_shutdown_complete")
	}
}
