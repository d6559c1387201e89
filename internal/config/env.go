package config

import (
	"os"
	"strconv"
)

// FromEnv overlays CANTEEN_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("CANTEEN_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CANTEEN_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("CANTEEN_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CANTEEN_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CANTEEN_TOKEN_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.TokenTTLSeconds = n
		}
	}
	if v := os.Getenv("CANTEEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	} else if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CANTEEN_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics = b
		}
	}
	if v := os.Getenv("CANTEEN_SESSION_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionTTLSeconds = n
		}
	}
	if v := os.Getenv("CANTEEN_ETA_SLOT_MINUTES"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ETA.SlotMinutes = f
		}
	}
	if v := os.Getenv("CANTEEN_ETA_BULK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ETA.BulkThreshold = n
		}
	}
	if v := os.Getenv("CANTEEN_ETA_BULK_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ETA.BulkMultiplier = f
		}
	}
}
