package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/folio/internal/config"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.Equal(t, strings.Contains(out, "hidden"), false)
	assert.Equal(t, strings.Contains(out, `"msg":"shown"`), true)
	assert.Equal(t, strings.Contains(out, `"key":"value"`), true)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, ParseLogLevel("debug").String(), "DEBUG")
	assert.Equal(t, ParseLogLevel("WARNING").String(), "WARN")
	assert.Equal(t, ParseLogLevel("bogus").String(), "INFO")
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := t.TempDir() + "/nested/folio.log"
	logger, err := SetupLogger(&config.LoggingConfig{File: path, Level: "debug"})
	assert.Equal(t, err, nil)
	logger.Debug("written")
}

func TestSetupLoggerWithoutFile(t *testing.T) {
	logger, err := SetupLogger(&config.LoggingConfig{})
	assert.Equal(t, err, nil)
	assert.NotEqual(t, logger, nil)
}
