package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"k": 2})
	l.Warnf("warn")
	l.Warnw("warn", map[string]any{"k": 3})
	l.Errorf("error")
}

func TestZerologLoggerWritesComponentAndFields(t *testing.T) {
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("dispatch", &buf)
	l.Infow("assignment run", map[string]any{"assigned": 3})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatch", line["component"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "assignment run", line["message"])
	assert.EqualValues(t, 3, line["assigned"])
}

func TestZerologLoggerRespectsLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("dispatch", &buf)
	l.Infof("hidden")
	assert.Zero(t, buf.Len())
	l.Warnf("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestZerologLoggerWarnw(t *testing.T) {
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("http", &buf)
	l.Warnw("request failed", map[string]any{"status": 503})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.EqualValues(t, 503, line["status"])
}
