package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/internal/config"
)

func TestSetupWriter_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := SetupWriter(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithRequestID(log, "req-1").Info("hello", "location_id", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.EqualValues(t, 3, line["location_id"])
}

func TestSetupWriter_DevelopmentIsTextAndLevelled(t *testing.T) {
	var buf bytes.Buffer
	log := SetupWriter(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("quiet")
	WithError(WithSession(log, "s-1"), errors.New("boom")).Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.True(t, strings.Contains(out, "msg=loud"), out)
	assert.Contains(t, out, "session_id=s-1")
	assert.Contains(t, out, "error=boom")
}
