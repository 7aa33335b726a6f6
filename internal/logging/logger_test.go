package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()

	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(dir, LevelDebug)
	require.NoError(t, err)
	logger.WithDriver("ws").Debug("listening", "addr", "127.0.0.1:21025")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	entries := decodeLines(t, string(data))
	require.Len(t, entries, 1)
	assert.Equal(t, "listening", entries[0]["msg"])
	assert.Equal(t, "ws", entries[0]["driver"])
}

func TestNewLogger_Stderr(t *testing.T) {
	logger, err := NewLogger("", LevelInfo)
	require.NoError(t, err)
	assert.Nil(t, logger.sink.file)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"Error":   LevelError,
		"info":    LevelInfo,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NewWriterLogger(&bytes.Buffer{}, in).Level())
		})
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", "signal", "room")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 2)
	assert.Equal(t, "warn message", entries[0]["msg"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "room", entries[1]["signal"])
}

func TestSetLevel_SharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelError)
	child := logger.WithSignal("view")

	child.Info("hidden")
	logger.SetLevel("debug")
	child.Debug("visible")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["msg"])
	assert.Equal(t, LevelDebug, child.Level())
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo)

	logger.WithDriver("cdp").WithSignal("hash").With("room", "W1N1", 42, "ignored").
		Info("changed", "hash", "#!/room/shard0/W1N1")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "cdp", e["driver"])
	assert.Equal(t, "hash", e["signal"])
	assert.Equal(t, "W1N1", e["room"])
	assert.Equal(t, "#!/room/shard0/W1N1", e["hash"])
	assert.NotContains(t, e, "42")

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.With(1, 2))
}

func TestClose_FromChild(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), LevelInfo)
	require.NoError(t, err)

	child := logger.WithDriver("js")
	require.NoError(t, child.Close())
	assert.NoError(t, logger.Close(), "already closed by a relative")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	assert.NotPanics(t, func() {
		logger.With("k", "v").Error("dropped")
	})
	assert.NoError(t, logger.Close())
}
