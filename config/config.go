// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`

	DBPath string `envconfig:"DB_PATH" default:"ledger.db"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"12h"`

	// Optional alternative counter backends. Postgres wins when both are set.
	RedisAddr   string `envconfig:"REDIS_ADDR"`
	PostgresDSN string `envconfig:"PG_DSN"`

	BackupSchedule string `envconfig:"BACKUP_SCHEDULE"`
	BackupDir      string `envconfig:"BACKUP_DIR" default:"backups"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	AdminRateLimit int `envconfig:"ADMIN_RATE_LIMIT" default:"10"`

	SeedDemo bool `envconfig:"SEED_DEMO" default:"true"`
}

// Load reads an optional env file, then the environment.
// A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment returns true outside production-like environments.
func (c *Config) IsDevelopment() bool {
	return c != nil && (c.AppEnv == "" || c.AppEnv == "development" || c.AppEnv == "test")
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.AppAddr == "" {
		return errors.New("APP_ADDR must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("JWT_SECRET must be provided outside development")
	}
	if c.BackupSchedule != "" && strings.TrimSpace(c.BackupDir) == "" {
		return errors.New("BACKUP_DIR must be provided when BACKUP_SCHEDULE is set")
	}
	return nil
}
