package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Payment webhook
	PaymentWebhookSecret string

	// Hosting rules
	HostActiveLead time.Duration

	// Transaction retry configuration
	TxMaxAttempts  int
	TxRetryBackoff time.Duration

	// Completion sweeper configuration
	SweepInterval     time.Duration
	SweepInitialDelay time.Duration
	SweepBatchSize    int
	SweepMinAge       time.Duration
	SweepMaxAge       time.Duration
	SweepLockTTL      time.Duration

	// Rate limiting
	SubmitRateLimit  int
	SubmitRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Payment webhook
		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),

		// Hosting rules
		HostActiveLead: getEnvAsDuration("HOST_ACTIVE_LEAD", "2h"),

		// Transaction retries
		TxMaxAttempts:  getEnvAsInt("TX_MAX_ATTEMPTS", 5),
		TxRetryBackoff: getEnvAsDuration("TX_RETRY_BACKOFF", "25ms"),

		// Sweeper
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", "30m"),
		SweepInitialDelay: getEnvAsDuration("SWEEP_INITIAL_DELAY", "10s"),
		SweepBatchSize:    getEnvAsInt("SWEEP_BATCH_SIZE", 10),
		SweepMinAge:       getEnvAsDuration("SWEEP_MIN_AGE", "2h"),
		SweepMaxAge:       getEnvAsDuration("SWEEP_MAX_AGE", "24h"),
		SweepLockTTL:      getEnvAsDuration("SWEEP_LOCK_TTL", "5m"),

		// Rate limiting
		SubmitRateLimit:  getEnvAsInt("SUBMIT_RATE_LIMIT", 10),
		SubmitRateWindow: getEnvAsDuration("SUBMIT_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
