package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/gptrepl/internal/env"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithConsole(&buf), WithNoColor(true))

	log.Debug("hidden")
	log.Info("Chat program ready", "pid", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Chat program ready")
	assert.Contains(t, out, "pid=42")
}

func TestNew_DevelopmentIsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Development, WithConsole(&buf), WithNoColor(true))

	log.Debug("Built command arguments")

	assert.Contains(t, buf.String(), "Built command arguments")
}

func TestNew_WithLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Development, WithConsole(&buf), WithNoColor(true), WithLevel(slog.LevelWarn))

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestNew_FileFanout(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "gptrepl.log")

	log := New(env.Production,
		WithConsole(&buf),
		WithNoColor(true),
		WithLogToFile(true),
		WithLogFile(file),
	)
	log.With("component", "chat_session").Info("Chat program closed", "exit", "signal: killed")

	assert.Contains(t, buf.String(), "Chat program closed")

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "Chat program closed", entry["msg"])
	assert.Equal(t, "chat_session", entry["component"])
	assert.Equal(t, "production", entry["env"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel(" debug ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
