package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/reportbot/internal/config"
)

func TestJSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "warn", Console: true}, &buf)

	l.Info("hidden")
	l.Warn("reminder not delivered", "user_id", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reminder not delivered", entry["msg"])
	assert.Equal(t, float64(2), entry["user_id"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "debug", Format: "text", Console: true}, &buf)
	l.Debug("tick", "due", false)
	assert.Contains(t, buf.String(), "msg=tick")
	assert.Contains(t, buf.String(), "due=false")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportbot.log")
	var console bytes.Buffer
	l := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &console)
	l.Info("report submitted", "report_id", 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "report submitted")
	assert.Empty(t, console.String(), "console output is off")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
