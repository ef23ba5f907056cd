package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIURL      = "http://localhost:5000/api"
	defaultHTTPTimeout = 30 * time.Second
)

// Config holds all configuration for the application
type Config struct {
	// API Configuration
	API APIConfig

	// Sandbox Configuration
	Sandbox SandboxConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds the client's view of the remote API
type APIConfig struct {
	URL     string // empty when not set in the environment
	Timeout time.Duration
}

// SandboxConfig holds configuration for the local sandbox API
type SandboxConfig struct {
	Address     string
	JWTSecret   string // random per run when empty
	DatabaseURL string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	timeout := defaultHTTPTimeout
	if raw := os.Getenv("INVOICELY_HTTP_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid INVOICELY_HTTP_TIMEOUT %q: %w", raw, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("INVOICELY_HTTP_TIMEOUT must be positive, got %s", parsed)
		}
		timeout = parsed
	}

	sandboxAddr := os.Getenv("SANDBOX_ADDR")
	if sandboxAddr == "" {
		sandboxAddr = ":5000"
	}

	// Logging configuration - defaults suitable for a command line tool
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
	}

	return &Config{
		API: APIConfig{
			URL:     os.Getenv("INVOICELY_API_URL"),
			Timeout: timeout,
		},
		Sandbox: SandboxConfig{
			Address:     sandboxAddr,
			JWTSecret:   os.Getenv("SANDBOX_JWT_SECRET"),
			DatabaseURL: os.Getenv("SANDBOX_DATABASE_URL"), // empty means in-memory
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}

// ResolveAPIURL picks the API base URL: flag, then environment, then the
// user config, then the default
func ResolveAPIURL(flag, env, user string) string {
	for _, candidate := range []string{flag, env, user} {
		if candidate != "" {
			return candidate
		}
	}
	return defaultAPIURL
}
