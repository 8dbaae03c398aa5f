package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"teamfines"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"teamfines"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"teamfines"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"20"`

	// Migrations
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`

	// Actor tokens issued by the identity provider
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTIssuer string        `env:"JWT_ISSUER"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"12h"`

	// Server
	APIPort  int    `env:"API_PORT" envDefault:"3100"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mutations per organization per minute; 0 disables throttling.
	WriteRateLimit int `env:"WRITE_RATE_LIMIT" envDefault:"120"`

	// Kafka / outbox relay
	KafkaBrokers       string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix   string        `env:"KAFKA_TOPIC_PREFIX" envDefault:"teamfines"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	KafkaFailThreshold int           `env:"KAFKA_FAIL_THRESHOLD" envDefault:"5"`
	KafkaResetTimeout  time.Duration `env:"KAFKA_RESET_TIMEOUT" envDefault:"30s"`

	// Tracing
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or inconsistent configuration.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.OutboxPollInterval)
	}
	if c.WriteRateLimit < 0 {
		return fmt.Errorf("WRITE_RATE_LIMIT must not be negative, got %d", c.WriteRateLimit)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
