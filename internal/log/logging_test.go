package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetupSplitsConsoleByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closers, err := setup("debug", "", &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Debug("engine ready")
	logger.Log(t.Context(), LevelTrace, "hidden")
	logger.Error("device lost")

	assert.Contains(t, stdout.String(), "engine ready")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.NotContains(t, stdout.String(), "device lost")
	assert.Contains(t, stderr.String(), "device lost")
	assert.NotContains(t, stderr.String(), "engine ready")
}

func TestSetupWithFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "camel-keys.log")

	logger, closers, err := setup("trace", path, &stdout, &stderr)
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Log(t.Context(), LevelTrace, "transition", "key", "KEY_A")
	logger.Info("reloaded")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=TRACE")
	assert.Contains(t, string(data), "reloaded")
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "reloaded")
}

func TestNop(t *testing.T) {
	l := Nop(nil)
	require.NotNil(t, l)
	l.Info("discarded")
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))

	own := slog.Default()
	assert.Same(t, own, Nop(own))
}
