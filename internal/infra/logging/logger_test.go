package logging

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func setupTestLogger(output *bytes.Buffer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	SetLoggerForTest(zerolog.New(output).With().Timestamp().Logger().Level(lvl))
}

func TestInitLoggerAndSetLogLevelFallback(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "gateway.log")
	InitLogger(logFile, 1, 1, 1, false, "invalid")
	SetLogLevel("invalid")
	Info("hello", "k", "v")
	Warn("warn")
	Error("error")
}

func TestInfoLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Info("test message", "foo", 42, "bar", true)

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Error("expected log message not found in output")
	}
	if !strings.Contains(out, `"foo":42`) || !strings.Contains(out, `"bar":true`) {
		t.Error("expected key-value pairs not found in output")
	}
}

func TestErrorValuesAreRendered(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Error("upload failed", "error", errors.New("boom"), "dangling")

	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("expected error string in output, got %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	Debug("hidden debug")
	Info("hidden info")
	Warn("something odd", "code", 99)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected lower levels to be filtered, got %s", out)
	}
	if !strings.Contains(out, "something odd") || !strings.Contains(out, `"code":99`) {
		t.Error("warn log output missing expected content")
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	SetLogLevel("info")
	Info("should be visible")

	if !strings.Contains(buf.String(), "should be visible") {
		t.Error("expected info log after SetLogLevel not found")
	}
}
