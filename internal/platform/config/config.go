package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server reads from the environment so main
// stays lean.
type Config struct {
	Addr     string `env:"DW_ADDR" envDefault:":8080"`
	LogLevel string `env:"DW_LOG_LEVEL" envDefault:"info"`

	// DatabaseURL is required; the datastore is the only shared state.
	DatabaseURL string `env:"DW_DATABASE_URL"`

	// RedisURL is optional. When set, job claims take a TTL lease in Redis
	// before the conditional status update.
	RedisURL string `env:"DW_REDIS_URL"`

	// KafkaBrokers is optional. When set, every recorded change is also
	// produced to KafkaChangeTopic.
	KafkaBrokers     []string `env:"DW_KAFKA_BROKERS" envSeparator:","`
	KafkaChangeTopic string   `env:"DW_KAFKA_CHANGE_TOPIC" envDefault:"domain-changes"`

	// JWTSigningKey protects the trigger endpoints.
	JWTSigningKey string `env:"DW_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	// Domain intelligence provider.
	ProviderURL string `env:"DW_PROVIDER_URL"`
	ProviderKey string `env:"DW_PROVIDER_KEY"`

	// Email delivery API used by the email channel sender.
	EmailAPIURL string `env:"DW_EMAIL_API_URL"`
	EmailAPIKey string `env:"DW_EMAIL_API_KEY"`

	BatchSize        int           `env:"DW_JOB_BATCH_SIZE" envDefault:"20"`
	JobParallelism   int           `env:"DW_JOB_PARALLELISM" envDefault:"4"`
	RetryCutoff      time.Duration `env:"DW_JOB_RETRY_CUTOFF" envDefault:"60s"`
	ExternalTimeout  time.Duration `env:"DW_EXTERNAL_TIMEOUT" envDefault:"5s"`
	RetentionWindow  time.Duration `env:"DW_NOTIFICATION_RETENTION" envDefault:"720h"`
	ShutdownTimeout  time.Duration `env:"DW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// FromEnv parses the process environment into a Config.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
