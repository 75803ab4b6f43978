// Package common provides shared utilities for invest-track
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage drivers accepted by [storage] driver.
const (
	StorageDriverMemory    = "memory"
	StorageDriverPostgres  = "postgres"
	StorageDriverSurrealDB = "surrealdb"
)

// Config holds all configuration for invest-track
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
}

// GetReadTimeout parses and returns the read timeout
func (c *ServerConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout parses and returns the write timeout
func (c *ServerConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 60*time.Second)
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver string `toml:"driver"` // memory | postgres | surrealdb

	// Postgres
	DSN string `toml:"dsn"`

	// SurrealDB
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`

	// InitialBalance seeds the cash base of lazily created users.
	InitialBalance string `toml:"initial_balance"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Prices PricesConfig `toml:"prices"`
	Sheets SheetsConfig `toml:"sheets"`
	S3     S3Config     `toml:"s3"`
}

// PricesConfig holds brokerage price API configuration
type PricesConfig struct {
	Provider  string `toml:"provider"` // tinkoff | eodhd
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"` // used when the user has no token of their own
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`

	// Fallback names a second provider asked when the first has no price.
	// It always uses FallbackAPIKey, never the user's token.
	Fallback       string `toml:"fallback"`
	FallbackAPIKey string `toml:"fallback_api_key"`
}

// GetTimeout parses and returns the timeout duration
func (c *PricesConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// SheetsConfig holds spreadsheet sync configuration
type SheetsConfig struct {
	Provider  string `toml:"provider"` // google | s3
	BaseURL   string `toml:"base_url"`
	SheetName string `toml:"sheet_name"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *SheetsConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// S3Config holds S3 configuration for the CSV spreadsheet backend
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`   // Optional key prefix within bucket
	Region    string `toml:"region"`   // AWS region (e.g., "us-east-1")
	Endpoint  string `toml:"endpoint"` // Custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// AuthConfig holds identity token configuration.
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenExpiry   string `toml:"token_expiry"` // duration string, default "24h"
	DefaultUserID int64  `toml:"default_user_id"`
	RequireToken  bool   `toml:"require_token"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	return parseDuration(c.TokenExpiry, 24*time.Hour)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  "30s",
			WriteTimeout: "60s",
		},
		Storage: StorageConfig{
			Driver:         StorageDriverMemory,
			Namespace:      "investtrack",
			Database:       "investtrack",
			InitialBalance: "0",
		},
		Clients: ClientsConfig{
			Prices: PricesConfig{
				Provider:  "tinkoff",
				RateLimit: 5,
				Timeout:   "10s",
			},
			Sheets: SheetsConfig{
				Provider:  "google",
				SheetName: "Sheet1",
				Timeout:   "15s",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Auth: AuthConfig{
			JWTSecret:     "dev-jwt-secret-change-in-production",
			TokenExpiry:   "24h",
			DefaultUserID: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Outputs:    []string{"console"},
			FilePath:   "./logs/investtrack.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverMemory, StorageDriverPostgres, StorageDriverSurrealDB:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidInput, c.Storage.Driver)
	}
	if c.Storage.Driver == StorageDriverPostgres && c.Storage.DSN == "" {
		return fmt.Errorf("%w: storage.dsn is required for postgres", ErrInvalidInput)
	}
	if c.Storage.Driver == StorageDriverSurrealDB && c.Storage.Address == "" {
		return fmt.Errorf("%w: storage.address is required for surrealdb", ErrInvalidInput)
	}
	if c.Auth.DefaultUserID <= 0 {
		c.Auth.DefaultUserID = 1
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INVESTTRACK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("INVESTTRACK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("INVESTTRACK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("INVESTTRACK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage overrides
	if v := os.Getenv("INVESTTRACK_STORAGE_DRIVER"); v != "" {
		config.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("INVESTTRACK_DATABASE_URL"); v != "" {
		config.Storage.DSN = v
	}
	if v := os.Getenv("INVESTTRACK_SURREALDB_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("INVESTTRACK_SURREALDB_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("INVESTTRACK_SURREALDB_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	// Client overrides
	if v := os.Getenv("INVESTTRACK_PRICES_PROVIDER"); v != "" {
		config.Clients.Prices.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("INVESTTRACK_PRICES_API_KEY"); v != "" {
		config.Clients.Prices.APIKey = v
	}
	if v := os.Getenv("INVESTTRACK_PRICES_FALLBACK"); v != "" {
		config.Clients.Prices.Fallback = strings.ToLower(v)
	}
	if v := os.Getenv("INVESTTRACK_PRICES_FALLBACK_API_KEY"); v != "" {
		config.Clients.Prices.FallbackAPIKey = v
	}
	if v := os.Getenv("INVESTTRACK_SHEETS_PROVIDER"); v != "" {
		config.Clients.Sheets.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("INVESTTRACK_S3_ACCESS_KEY"); v != "" {
		config.Clients.S3.AccessKey = v
	}
	if v := os.Getenv("INVESTTRACK_S3_SECRET_KEY"); v != "" {
		config.Clients.S3.SecretKey = v
	}

	// Auth overrides
	if v := os.Getenv("INVESTTRACK_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("INVESTTRACK_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// StorageAddress returns a printable description of the configured backend.
func (c *Config) StorageAddress() string {
	switch c.Storage.Driver {
	case StorageDriverSurrealDB:
		return c.Storage.Address
	case StorageDriverPostgres:
		return "postgres"
	default:
		return "memory"
	}
}
