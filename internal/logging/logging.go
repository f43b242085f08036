// Package logging provides the structured logger shared across the bot.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// ParseLevel converts a textual log level into a slog.Level, defaulting to
// info for anything it does not recognize.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

// New constructs a slog.Logger backed by a tint handler.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: level,
	}))
}
