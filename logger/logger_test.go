package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogging(t *testing.T) {
	ctx := context.Background()
	ctx = WithContextValue(ctx, RootKey, "tracker")
	ctx = WithContextValue(ctx, ResourceIDKey, "c0ffee")
	ctx = WithContextValue(ctx, RequestIDKey, "req789")

	args := ExtractContextValues(ctx)
	assert.Equal(t, []any{"root", "tracker", "resource_id", "c0ffee", "request_id", "req789"}, args)
	var nilCtx context.Context
	assert.Nil(t, ExtractContextValues(nilCtx))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"TRACE": LevelTrace,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"-8":    LevelTrace,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseLevel("loud")
	assert.False(t, ok)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "TRACE")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_ADD_SOURCE", "true")

	config := LoadConfig()
	assert.Equal(t, LevelTrace, config.Level)
	assert.Equal(t, "text", config.Format)
	assert.True(t, config.AddSource)
}

func TestNewLoggerRendersTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: LevelTrace, Format: "text", Writer: &buf})

	l.Log(context.Background(), LevelTrace, "closing tracked resource")
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.True(t, l.Enabled(context.Background(), LevelTrace))
	assert.False(t, Discard(slog.LevelInfo).Enabled(context.Background(), LevelTrace))
}
