package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger. DEBUG=true wins over the level string.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	if os.Getenv("DEBUG") == "true" {
		opts.Level = slog.LevelDebug
	}

	l := slog.New(slog.NewTextHandler(w, opts))
	slog.SetDefault(l)
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
