package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	HTTPAddr string

	// Database. An empty DatabaseURL selects local SQLite at SQLitePath.
	DatabaseURL      string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis. Empty selects in-process sync locks.
	RedisURL string

	// RabbitMQ. Empty selects the in-process event bus.
	RabbitMQURL string

	// Stripe
	StripeAPIKey           string
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration
	GatewayBreakerFailures int
	GatewayBreakerTimeout  time.Duration

	// Compliance
	SyncLockTTL             time.Duration
	ComplianceSweepSchedule string
	LedgerRetention         time.Duration

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Worker
	WorkerHealthAddr string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		StripeAPIKey:           getEnv("STRIPE_API_KEY", ""),
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookTolerance: getDurationEnv("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		GatewayBreakerFailures: getIntEnv("GATEWAY_BREAKER_FAILURES", 5),
		GatewayBreakerTimeout:  getDurationEnv("GATEWAY_BREAKER_TIMEOUT", 30*time.Second),

		SyncLockTTL:             getDurationEnv("SYNC_LOCK_TTL", 30*time.Second),
		ComplianceSweepSchedule: getEnv("COMPLIANCE_SWEEP_SCHEDULE", "@hourly"),
		LedgerRetention:         getDurationEnv("LEDGER_RETENTION", 90*24*time.Hour),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsLocal reports whether the database is local SQLite.
func (c *Config) IsLocal() bool {
	return c.DatabaseURL == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
