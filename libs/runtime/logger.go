package runtime

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger writes JSON to stdout at the level named by LOG_LEVEL.
func NewLogger(service string) *slog.Logger {
	return NewLoggerWithLevel(service, os.Getenv("LOG_LEVEL"))
}

func NewLoggerWithLevel(service, level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(h).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
