// Package logging builds slog loggers from configuration values.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a slog.Logger for the requested verbosity and format. Unknown
// level strings fall back to info.
func New(level string, json bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}

	return slog.New(h)
}
