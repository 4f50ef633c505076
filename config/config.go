package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path     string
	PoolSize int
}

// AuthConfig holds the operator credentials and session lifetime.
type AuthConfig struct {
	Username   string
	Password   string
	SessionTTL time.Duration
}

// AuditConfig holds the ledger audit scheduler settings.
type AuditConfig struct {
	CronSchedule string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	poolSize, err := strconv.Atoi(getenvWithDefault("DB_POOL_SIZE", "4"))
	if err != nil {
		return nil, fmt.Errorf("DB_POOL_SIZE must be an integer: %w", err)
	}

	ttl, err := time.ParseDuration(getenvWithDefault("SESSION_TTL", "12h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL must be a duration: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Path:     getenvWithDefault("DB_PATH", "./data/brood.db"),
			PoolSize: poolSize,
		},
		Auth: AuthConfig{
			Username:   getenvWithDefault("ADMIN_USERNAME", "admin"),
			Password:   os.Getenv("ADMIN_PASSWORD"),
			SessionTTL: ttl,
		},
		Audit: AuditConfig{
			CronSchedule: getenvWithDefault("AUDIT_CRON_SCHEDULE", "0 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Database.Path == "" {
		return errors.New("DB_PATH must be provided")
	}

	if c.Database.PoolSize < 1 {
		return errors.New("DB_POOL_SIZE must be at least 1")
	}

	if c.Auth.Username == "" {
		return errors.New("ADMIN_USERNAME must be provided")
	}

	if c.Auth.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	if c.Audit.CronSchedule == "" {
		return errors.New("AUDIT_CRON_SCHEDULE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
