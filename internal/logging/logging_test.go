package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Info().Msg("hidden")
	logger.Warn().Str("op", "validate").Msg("shown")

	var event map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event))
	assert.Equal(t, "shown", event["message"])
	assert.Equal(t, "validate", event["op"])
	assert.Contains(t, event, "time")
}

func TestConsoleLoggerHasNoColourOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Config{Format: "console", Output: &buf})
	require.NoError(t, err)

	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestLoggerAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellml.log")
	logger, closeFn, err := New(Config{Path: path})
	require.NoError(t, err)
	logger.Info().Msg("first")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"first"`)
}

func TestInvalidConfig(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	_, _, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}
