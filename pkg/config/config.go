// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/testboss/testboss/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	LogLevel  observability.LogLevel
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// StorageConfig holds the backing store configuration
type StorageConfig struct {
	PostgresURL string
	RedisURL    string
}

// AuthConfig holds token and session lifetimes plus the signing secret
type AuthConfig struct {
	JWTSecret       string
	JWTDuration     time.Duration
	SessionDuration time.Duration

	// Cron schedule for the expired-session sweep
	SessionSweepSchedule string
}

// RateLimitConfig holds the login rate limiter knobs
type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TESTBOSS_HOST", "0.0.0.0"),
			Port:            getEnv("TESTBOSS_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TESTBOSS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TESTBOSS_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TESTBOSS_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TESTBOSS_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     splitAndTrim(getEnv("TESTBOSS_CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			PostgresURL: getEnv("TESTBOSS_POSTGRES_URL", ""),
			RedisURL:    getEnv("TESTBOSS_REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("TESTBOSS_JWT_SECRET", ""),
			JWTDuration:          getEnvDuration("TESTBOSS_JWT_DURATION", 30*time.Minute),
			SessionDuration:      getEnvDuration("TESTBOSS_SESSION_DURATION", 30*time.Minute),
			SessionSweepSchedule: getEnv("TESTBOSS_SESSION_SWEEP_SCHEDULE", "@hourly"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: getEnvInt("TESTBOSS_LOGIN_RATE_LIMIT", 10),
			LoginWindow:   getEnvDuration("TESTBOSS_LOGIN_RATE_WINDOW", time.Minute),
		},
		LogLevel: parseLogLevel(getEnv("TESTBOSS_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.JWTDuration <= 0 {
		return fmt.Errorf("JWT duration must be positive")
	}
	if c.Auth.SessionDuration <= 0 {
		return fmt.Errorf("session duration must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Bare integers are taken as seconds, matching common deploy tooling
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
