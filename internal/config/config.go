// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"showcase/internal/models"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// Category store: "postgres" or "sqlite"
	StoreDriver string
	SQLitePath  string

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	ValkeyDB       int

	// Rate limiting: "memory" or "valkey"
	RateLimitBackend string
	RateLimitRead    int
	RateLimitWrite   int
	RateLimitWindow  time.Duration

	// Metadata cache
	MetaCacheSize int
	MetaCacheTTL  time.Duration

	// Tree mutations
	DeletePolicy    models.DeletePolicy
	MutationTimeout time.Duration

	// Anti-forgery nonces
	NonceSecret   string
	NonceLifetime time.Duration

	// Logging
	LogLevel  string // "debug", "info", "warn", "error"
	LogFormat string // "text" or "json"
	LogFile   string // optional rotating log file
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. A .env file in the working directory
// is loaded first if present; real environment variables take precedence.
// Returns an error if a value is malformed or if critical values are
// missing in production mode.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		StoreDriver: envOrDefault("STORE_DRIVER", "postgres"),
		SQLitePath:  envOrDefault("SQLITE_PATH", "showcase.db"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "showcase"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "showcase"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		ValkeyDB:       p.int("VALKEY_DB", 0),

		RateLimitBackend: envOrDefault("RATE_LIMIT_BACKEND", "memory"),
		RateLimitRead:    p.int("RATE_LIMIT_READ", 60),
		RateLimitWrite:   p.int("RATE_LIMIT_WRITE", 20),
		RateLimitWindow:  p.duration("RATE_LIMIT_WINDOW", time.Minute),

		MetaCacheSize: p.int("META_CACHE_SIZE", 1000),
		MetaCacheTTL:  p.duration("META_CACHE_TTL", 30*time.Second),

		MutationTimeout: p.duration("MUTATION_TIMEOUT", 5*time.Second),

		NonceSecret:   os.Getenv("NONCE_SECRET"),
		NonceLifetime: p.duration("NONCE_LIFETIME", 24*time.Hour),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),
		LogFile:   os.Getenv("LOG_FILE"),
	}

	policy, err := models.ParseDeletePolicy(envOrDefault("DELETE_POLICY", string(models.DeletePromoteChildren)))
	if err != nil {
		errs = append(errs, fmt.Errorf("DELETE_POLICY: %w", err))
	}
	cfg.DeletePolicy = policy

	switch cfg.StoreDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or sqlite, got %q", cfg.StoreDriver))
	}
	switch cfg.RateLimitBackend {
	case "memory", "valkey":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or valkey, got %q", cfg.RateLimitBackend))
	}
	if cfg.RateLimitRead <= 0 || cfg.RateLimitWrite <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_READ and RATE_LIMIT_WRITE must be positive"))
	}
	if cfg.RateLimitWindow < time.Second {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s"))
	}

	if cfg.Env == "production" {
		if cfg.StoreDriver == "postgres" && cfg.DBPassword == "changeme" {
			errs = append(errs, fmt.Errorf("POSTGRES_PASSWORD must be set in production"))
		}
		if cfg.NonceSecret == "" {
			errs = append(errs, fmt.Errorf("NONCE_SECRET must be set in production"))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.NonceSecret == "" {
		cfg.NonceSecret = randomSecret()
		slog.Warn("NONCE_SECRET not set, using a random secret; nonces will not survive a restart")
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser reads typed values and collects parse errors.
type parser struct {
	errs *[]error
}

func (p parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (p parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
