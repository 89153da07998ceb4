package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "console", cfg.Mode)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "livedocs.log", cfg.FilePath)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConsoleHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewConsoleHandler(&buf, "text", slog.LevelInfo)).Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	slog.New(NewConsoleHandler(&buf, "json", slog.LevelInfo)).Info("hello", "key", "value")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	logger := slog.New(NewConsoleHandler(&buf, "text", slog.LevelWarn))
	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestInitFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "livedocs.log")
	require.NoError(t, Init(&Config{Mode: "file", Level: "debug", Format: "json", FilePath: path, MaxSizeMB: 1, MaxBackups: 1}))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	Debug("flow saved", "flow_id", "abc")
	With("component", "test").Info("with attrs")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"flow_id":"abc"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestInitRejectsUnknownMode(t *testing.T) {
	assert.Error(t, Init(&Config{Mode: "database"}))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(NewConsoleHandler(&buf, "text", slog.LevelInfo))
	t.Cleanup(func() { defaultLogger = nil })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req12345")
	FromContext(ctx).Info("tagged")
	FromContext(context.Background()).Info("untagged")

	assert.Contains(t, buf.String(), "request_id=req12345")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("request_id=")))
}
