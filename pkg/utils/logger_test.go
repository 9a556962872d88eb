package utils

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"unknown", LevelInfo}, // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestLogrusLogger_LogLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogrusLogger(LevelDebug, buf, "text")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.Contains(t, output, "level=debug")
	assert.Contains(t, output, "level=info")
	assert.Contains(t, output, "level=warning")
	assert.Contains(t, output, "level=error")
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "error message")
}

func TestLogrusLogger_FilterByLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogrusLogger(LevelWarn, buf, "text")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestLogrusLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogrusLogger(LevelInfo, buf, "text")

	logger.WithField("task_id", "123").Info("mining task")
	logger.WithFields(map[string]interface{}{"dataset": "retail", "max_k": 10}).Info("start")

	output := buf.String()
	assert.Contains(t, output, "task_id=123")
	assert.Contains(t, output, "dataset=retail")
	assert.Contains(t, output, "max_k=10")
}

func TestLogrusLogger_Formatting(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogrusLogger(LevelInfo, buf, "text")

	logger.Info("patterns: %d, cost: %.1f", 3, 12.5)

	assert.Contains(t, buf.String(), "patterns: 3, cost: 12.5")
}

func TestLogrusLogger_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogrusLogger(LevelInfo, buf, "json")

	logger.WithField("iteration", 2).Info("committed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "committed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(2), entry["iteration"])
}

func TestLogrusLogger_SetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogrusLogger(LevelInfo, buf, "text")

	logger.Debug("debug 1")
	assert.NotContains(t, buf.String(), "debug 1")

	logger.SetLevel(LevelDebug)
	logger.Debug("debug 2")
	assert.Contains(t, buf.String(), "debug 2")
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "miner.log")
	logger, err := NewFileLogger(LevelInfo, path, "text")
	require.NoError(t, err)

	logger.Info("to file")
	assert.FileExists(t, path)
}

func TestNullLogger(t *testing.T) {
	logger := &NullLogger{}

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	assert.Equal(t, logger, logger.WithField("key", "value"))
	assert.Equal(t, logger, logger.WithFields(map[string]interface{}{"key": "value"}))
}

func TestGlobalLogger(t *testing.T) {
	original := globalLogger
	defer SetGlobalLogger(original)

	buf := &bytes.Buffer{}
	SetGlobalLogger(NewLogrusLogger(LevelInfo, buf, "text"))

	GetGlobalLogger().Info("global log")

	assert.Equal(t, 1, strings.Count(buf.String(), "global log"))
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = &LogrusLogger{}
	var _ Logger = &NullLogger{}
}
