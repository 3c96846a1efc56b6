package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	SecretKey string `env:"SECRET_KEY, required"`
	OriginURL string `env:"ORIGIN_URL, default=*"`

	Mongo        MongoConfig
	Redis        RedisConfig
	Intervention InterventionConfig
	Audit        AuditConfig
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string        `env:"MONGO_DB,      default=realm_auth"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type InterventionConfig struct {
	PassTTL       time.Duration `env:"ONE_TIME_PASS_TTL,   default=15m"`
	MaxAttempts   int           `env:"JOIN_MAX_ATTEMPTS,   default=5"`
	AttemptWindow time.Duration `env:"JOIN_ATTEMPT_WINDOW, default=15m"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Intervention.PassTTL <= 0 {
		return nil, fmt.Errorf("config: ONE_TIME_PASS_TTL must be positive")
	}
	return &cfg, nil
}
