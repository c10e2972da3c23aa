// Package config loads server configuration from the environment.
//
// An optional .env file in the working directory is read first; variables
// already present in the environment win over values from the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigin   string
	EnableMCP    bool

	// Storage. DBConn is the SQL connection string; MongoURI and
	// MongoDatabase are used when DBDriver is "mongo".
	DBDriver      string
	DBConn        string
	MongoURI      string
	MongoDatabase string

	// Logging
	LogLevel  string
	LogFormat string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads the configuration like Read and validates it.
func Load(envFile string) (*Config, error) {
	cfg, err := Read(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads envFile (if it exists) and then the process environment
// without validating, so callers can apply overrides first. An empty
// envFile skips the file.
func Read(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ListenAddr:   getEnvOrDefault("LISTEN_ADDR", ":5000"),
		ReadTimeout:  parseDurationOrDefault("READ_TIMEOUT", 10*time.Second),
		WriteTimeout: parseDurationOrDefault("WRITE_TIMEOUT", 10*time.Second),
		CORSOrigin:   getEnvOrDefault("CORS_ORIGIN", "*"),
		EnableMCP:    parseBoolOrDefault("ENABLE_MCP", true),

		DBDriver:      getEnvOrDefault("DB_DRIVER", DriverSQLite),
		DBConn:        getEnvOrDefault("DB_CONN", "./noteboard.db"),
		MongoURI:      strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "noteboard"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}

	// PORT is honored as a fallback; LISTEN_ADDR takes precedence.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("LISTEN_ADDR") == "" {
		cfg.ListenAddr = ":" + port
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}

	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
		if c.DBConn == "" {
			errs = append(errs, "DB_CONN is required for SQL drivers")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required when DB_DRIVER=mongo")
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER must be one of %s, %s, %s (got %q)",
			DriverSQLite, DriverPostgres, DriverMongo, c.DBDriver))
	}

	if c.ReadTimeout <= 0 {
		errs = append(errs, "READ_TIMEOUT must be positive")
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, "WRITE_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
