package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown", "component", "test")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=test")
}
