package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info", Format: "console"}).
		With(ComponentKey, "match")

	logger.Info("skipped transaction", "transaction_id", "T1", "reason", "ambiguous_candidates=2")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [match] ["), line)
	assert.Contains(t, line, "skipped transaction transaction_id=T1 reason=ambiguous_candidates=2")
	assert.NotContains(t, line, "\033[", "no colors when not a terminal")
}

func TestConsoleHandler_QuotesAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{})

	logger.WithGroup("run").Warn("store failure", "error", errors.New("disk full"), "count", 3)

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, `run.error="disk full"`)
	assert.Contains(t, line, "run.count=3")
}

func TestConsoleHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "warn"})

	logger.Info("hidden")
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Error("shown")
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug", Format: "json"})

	logger.Debug("applied", "transaction_id", "T1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "applied", entry["msg"])
	assert.Equal(t, "T1", entry["transaction_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
