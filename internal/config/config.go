// Package config reads process configuration from the environment.
// A .env file in the working directory is loaded first if present.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Store backends accepted in STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is shared by cmd/server and cmd/historian.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`

	// StoreBackend selects where the relationship snapshot lives.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	Postgres Postgres
	Redis    Redis

	// TokenExpire is a Go duration, or "never"/"0"/empty for tokens without exp.
	TokenExpire string `env:"TOKEN_EXPIRE_TIME"`

	// Raw ed25519 key files. Without them each process signs with a fresh
	// key and sessions do not survive a restart.
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	MaxApplyAttempts int `env:"RELATIONSHIP_MAX_ATTEMPTS" envDefault:"5"`

	AuditEnabled bool   `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditQueue   string `env:"AUDIT_QUEUE_NAME" envDefault:"companion_relationship_events"`

	HistorianBatchSize int `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
}

type Postgres struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE"`
}

// ConnString is the pgx connection URL.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

type Redis struct {
	Addr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB          int    `env:"REDIS_DB" envDefault:"0"`
	SnapshotKey string `env:"REDIS_SNAPSHOT_KEY" envDefault:"companion:relationships"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxApplyAttempts < 1 {
		return fmt.Errorf("RELATIONSHIP_MAX_ATTEMPTS must be at least 1, got %d", c.MaxApplyAttempts)
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	return nil
}

// TokenTTL parses TokenExpire. Zero means tokens never expire.
func (c *Config) TokenTTL() (time.Duration, error) {
	switch c.TokenExpire {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpire)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// FlushDelay is how long the historian waits before flushing a partial batch.
func (c *Config) FlushDelay() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}
