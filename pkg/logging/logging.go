// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logger := logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
//	logger := logging.New(os.Stderr, "warn") // standalone, leaves slog.Default alone
//
// The server reads its level from the logLevel config key or CANTEEN_LOG_LEVEL.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// SetupWithLevel configures colored logging at the given level and returns
// the logger that was installed as the slog default.
func SetupWithLevel(level slog.Level) *slog.Logger {
	logger := slog.New(newHandler(os.Stderr, level))
	slog.SetDefault(logger)
	return logger
}

// New returns a tint-backed logger writing to w without touching the slog default.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(newHandler(w, ParseLevel(level)))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
}
