package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"mappool"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"mappool"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"mappool"`

	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"false"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Session
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"session_id"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"336h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// MinIO
	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minio"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minio123"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"maps"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	// MinioPublicURL is the base of stored image URLs; defaults to the endpoint.
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`

	// Server
	APIPort                int    `env:"API_PORT" envDefault:"8000"`
	CORSAllowedOrigins     string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	AllowStaffRegistration bool   `env:"ALLOW_STAFF_REGISTRATION" envDefault:"false"`
	MaxUploadBytes         int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	LoginRateLimit         int    `env:"LOGIN_RATE_LIMIT" envDefault:"10"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MinioBucket == "" {
		return fmt.Errorf("MINIO_BUCKET must not be empty")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.OutboxPollInterval)
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

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// PublicURL is the base URL stored image links start with.
func (c *Config) PublicURL() string {
	if c.MinioPublicURL != "" {
		return strings.TrimRight(c.MinioPublicURL, "/")
	}
	scheme := "http"
	if c.MinioUseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.MinioEndpoint
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
