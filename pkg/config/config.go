package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/groveauth/grove/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	AutoJoin      AutoJoinConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds the optional Redis connection used for rate limiting
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// AutoJoinConfig holds domain auto-enrollment settings
type AutoJoinConfig struct {
	// DNSTimeout bounds a single TXT lookup during verification.
	DNSTimeout time.Duration
	// PendingTTL is how long an unverified domain record is kept before the
	// scheduled purge removes it.
	PendingTTL time.Duration
	// VerifyRateLimit caps verification attempts per domain record per window.
	VerifyRateLimit  int
	VerifyRateWindow time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("GROVE_HOST", "0.0.0.0"),
			Port:            getEnv("GROVE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("GROVE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("GROVE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("GROVE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("GROVE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			PrimaryURL:  getEnv("GROVE_DATABASE_URL", ""),
			ReplicaURLs: getEnvList("GROVE_DATABASE_REPLICA_URLS"),
			MaxConns:    getEnvInt("GROVE_DATABASE_MAX_CONNS", 25),
			MinConns:    getEnvInt("GROVE_DATABASE_MIN_CONNS", 5),
			Timeout:     getEnvDuration("GROVE_DATABASE_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("GROVE_DATABASE_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("GROVE_DATABASE_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("GROVE_REDIS_ENABLED", false),
			Address:  getEnv("GROVE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("GROVE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("GROVE_REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("GROVE_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("GROVE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("GROVE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("GROVE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("GROVE_OTEL_SERVICE_NAME", "grove"),
			OTelServiceVersion: getEnv("GROVE_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("GROVE_OTEL_INSECURE", true),
		},
		AutoJoin: AutoJoinConfig{
			DNSTimeout:       getEnvDuration("GROVE_AUTOJOIN_DNS_TIMEOUT", 5*time.Second),
			PendingTTL:       getEnvDuration("GROVE_AUTOJOIN_PENDING_TTL", 30*24*time.Hour),
			VerifyRateLimit:  getEnvInt("GROVE_AUTOJOIN_VERIFY_RATE_LIMIT", 10),
			VerifyRateWindow: getEnvDuration("GROVE_AUTOJOIN_VERIFY_RATE_WINDOW", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("GROVE_DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("GROVE_DATABASE_MAX_CONNS must be >= GROVE_DATABASE_MIN_CONNS")
	}
	if c.AutoJoin.VerifyRateLimit <= 0 {
		return fmt.Errorf("GROVE_AUTOJOIN_VERIFY_RATE_LIMIT must be positive")
	}
	return nil
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
