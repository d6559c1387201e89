package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/canteen/internal/calculator"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Addr     string         `json:"addr" yaml:"addr"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	LogLevel string         `json:"logLevel" yaml:"logLevel"`
	Metrics  bool           `json:"metrics" yaml:"metrics"`

	// SessionTTLSeconds is the default split-session lifetime; 0 never expires.
	SessionTTLSeconds int `json:"sessionTTLSeconds" yaml:"sessionTTLSeconds"`

	ETA calculator.ETAConfig `json:"eta" yaml:"eta"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSecret       string `json:"jwtSecret" yaml:"jwtSecret"`
	TokenTTLSeconds int    `json:"tokenTTLSeconds" yaml:"tokenTTLSeconds"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Addr: ":8080",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "./data/canteen.db",
		},
		Auth: AuthConfig{
			JWTSecret:       "dev-secret-change-me",
			TokenTTLSeconds: int((24 * time.Hour).Seconds()),
		},
		LogLevel:          "info",
		Metrics:           true,
		SessionTTLSeconds: int((30 * time.Minute).Seconds()),
		ETA:               calculator.DefaultETAConfig(),
	}
}

// TokenTTL returns the token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLSeconds) * time.Second
}

// SessionTTL returns the default split-session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Auth.TokenTTLSeconds <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.SessionTTLSeconds < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	if c.ETA.SlotMinutes <= 0 || c.ETA.BulkMultiplier < 1 || c.ETA.BulkThreshold < 0 {
		return fmt.Errorf("invalid eta settings: %+v", c.ETA)
	}
	return nil
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
