package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string
	SentryDSN   string

	// JWT signing. Algorithm is "HS256" or "RS256". For HS256 the secret is
	// used directly; for RS256 JWTPrivateKey must contain a PEM-encoded key.
	JWTAlgorithm   string
	JWTSecret      string
	JWTPrivateKey  string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration

	// Master key for channel credential encryption (32 bytes, hex-encoded).
	ChannelSecretKey string

	// WhatsApp Cloud API base URL. Overridable for tests.
	WhatsAppBaseURL string

	// Login lockout policy.
	MaxFailedLogins int
	LockoutDuration time.Duration

	// Outbox worker.
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		JWTAlgorithm:   getEnv("JWT_ALGORITHM", "HS256"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTPrivateKey:  os.Getenv("JWT_PRIVATE_KEY"),
		JWTIssuer:      os.Getenv("JWT_ISSUER"),
		JWTAudience:    os.Getenv("JWT_AUDIENCE"),
		AccessTokenTTL: getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),

		ChannelSecretKey: os.Getenv("CHANNEL_SECRET_KEY"),

		WhatsAppBaseURL: getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),

		MaxFailedLogins: getEnvAsInt("MAX_FAILED_LOGINS", 5),
		LockoutDuration: getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),

		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		OutboxMaxRetries:   getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
	}
}

func getEnv(name, defaultVal string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
