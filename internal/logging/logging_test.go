package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "tradelock.log")

	logger, closeFn, err := New(&console, path, slog.LevelInfo)
	require.NoError(t, err)

	logger.Debug("debug only in file")
	logger.With(slog.String("component", "gate")).Info("probe", slog.Bool("online", true))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "debug only in file")
	assert.Contains(t, string(data), "component=gate")
	assert.Contains(t, console.String(), "probe")
	assert.NotContains(t, console.String(), "debug only in file")
}

func TestConsoleOnly(t *testing.T) {
	var console bytes.Buffer

	logger, closeFn, err := New(&console, "", slog.LevelDebug)
	require.NoError(t, err)

	logger.Info("hello")
	assert.NoError(t, closeFn())
	assert.Contains(t, console.String(), "hello")
}
