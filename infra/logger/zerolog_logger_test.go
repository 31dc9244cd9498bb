package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerStructuredFields(t *testing.T) {
	old := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(old)
	require.NoError(t, SetLevel("debug"))

	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "allocator")
	l.Debugw("target processed", map[string]any{"target": 2, "assigned": 3})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "allocator", line["component"])
	assert.Equal(t, "target processed", line["message"])
	assert.EqualValues(t, 3, line["assigned"])
}

func TestSetLevel(t *testing.T) {
	old := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(old)
	assert.NoError(t, SetLevel(""))
	assert.NoError(t, SetLevel("WARN"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("chatty"))
}
