package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hyrelay/hyrelay/internal/config"
	"github.com/hyrelay/hyrelay/internal/crypto"
	"github.com/hyrelay/hyrelay/internal/messaging"
	"github.com/hyrelay/hyrelay/internal/outbox"
	"github.com/hyrelay/hyrelay/internal/ratelimit"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
	"github.com/hyrelay/hyrelay/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg.Env, "hyrelay-worker")
	log.Info("worker_startup", "env", cfg.Env)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

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

	limiter := ratelimit.NewLimiter(rdb)
	window := messaging.NewServiceWindow(rdb, log)
	provider := whatsapp.NewClient(cfg.WhatsAppBaseURL, log)
	sendService := messaging.NewSendService(pool, limiter, window, provider, box, log)

	store := outbox.NewStore(pool, cfg.OutboxMaxRetries)
	worker := outbox.NewWorker(store, log, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	worker.Register("MessageSendRequested", sendService.HandleSendRequested)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go janitorLoop(ctx, pool, log)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		sig := <-quit
		log.Info("shutdown_signal_received", "signal", sig.String())
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		log.Error("worker_stopped", "error", err)
		os.Exit(1)
	}
	log.Info("worker_shutdown_complete")
}

// janitorLoop purges expired token rows every hour. Channel usage counters
// need no sweep; they reset lazily on period rollover.
func janitorLoop(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) {
	runJanitor(ctx, pool, log)

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJanitor(ctx, pool, log)
		}
	}
}

func runJanitor(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) {
	now := time.Now().UTC()
	err := storage.WithSystem(ctx, pool, func(uow *storage.UnitOfWork) error {
		refresh, err := uow.RefreshTokens().DeleteExpired(ctx, now)
		if err != nil {
			return err
		}
		single, err := uow.SingleUseTokens().DeleteExpired(ctx, now)
		if err != nil {
			return err
		}
		if refresh > 0 || single > 0 {
			log.Info("janitor_cleanup",
				"refresh_tokens_deleted", refresh,
				"single_use_tokens_deleted", single)
		}
		return nil
	})
	if err != nil {
		log.Error("janitor_cycle_failed", "error", err)
		sentry.CaptureException(err)
	}
}
