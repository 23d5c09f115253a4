// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Billing      BillingConfig      `yaml:"billing"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Auth         AuthConfig         `yaml:"auth"`
	Database     DatabaseConfig     `yaml:"database"`
	Stream       StreamConfig       `yaml:"stream"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout must stay zero: stream responses are open-ended and a
	// server write timeout would sever them.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// BillingConfig configures the billing authority connection.
type BillingConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// SubscriptionConfig configures the optional subscription overlay service.
type SubscriptionConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret,omitempty"`
	TokenExpiration time.Duration `yaml:"token_expiration,omitempty"`
}

// DatabaseConfig configures the local profile and token database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// StreamConfig configures the stream relay.
type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	QUOTAGATE_BILLING_URL        - Billing authority URL (required)
//	QUOTAGATE_SUBSCRIPTION_URL   - Subscription overlay URL (optional)
//	QUOTAGATE_DATABASE_DSN       - Database path (default: quotagate.db)
//	QUOTAGATE_SERVER_HOST        - Server host (default: 0.0.0.0)
//	QUOTAGATE_SERVER_PORT        - Server port (default: 8080)
//	QUOTAGATE_AUTH_JWT_SECRET    - Secret for JWT signing
//	QUOTAGATE_LOG_LEVEL          - Log level (default: info)
//	QUOTAGATE_LOG_FORMAT         - Log format: json or console (default: json)
//	QUOTAGATE_METRICS_ENABLED    - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables. Recommended for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("QUOTAGATE_BILLING_URL") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set QUOTAGATE_BILLING_URL")
}

// applyEnvOverrides applies QUOTAGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUOTAGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("QUOTAGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("QUOTAGATE_BILLING_URL"); v != "" {
		cfg.Billing.URL = v
	}
	if v := os.Getenv("QUOTAGATE_BILLING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Billing.Timeout = d
		}
	}

	if v := os.Getenv("QUOTAGATE_SUBSCRIPTION_URL"); v != "" {
		cfg.Subscription.URL = v
		cfg.Subscription.Enabled = true
	}

	if v := os.Getenv("QUOTAGATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("QUOTAGATE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("QUOTAGATE_STREAM_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.HeartbeatInterval = d
		}
	}

	if v := os.Getenv("QUOTAGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUOTAGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("QUOTAGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("QUOTAGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	if cfg.Billing.Timeout == 0 {
		cfg.Billing.Timeout = 10 * time.Second
	}
	if cfg.Subscription.Timeout == 0 {
		cfg.Subscription.Timeout = 5 * time.Second
	}

	if cfg.Auth.TokenExpiration == 0 {
		cfg.Auth.TokenExpiration = 24 * time.Hour
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "quotagate.db"
	}

	if cfg.Stream.HeartbeatInterval == 0 {
		cfg.Stream.HeartbeatInterval = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Billing.URL == "" {
		return fmt.Errorf("billing.url is required")
	}

	if cfg.Subscription.Enabled && cfg.Subscription.URL == "" {
		return fmt.Errorf("subscription.url is required when subscription.enabled is true")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Stream.HeartbeatInterval < time.Second {
		return fmt.Errorf("stream.heartbeat_interval must be at least 1s, got %s", cfg.Stream.HeartbeatInterval)
	}

	return nil
}
