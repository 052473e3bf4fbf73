package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithOutputWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("api", Config{Level: "debug"}, &buf)
	logger.Debug("session created", "session_id", "abc")

	out := buf.String()
	if !strings.Contains(out, "session created") || !strings.Contains(out, "session_id=abc") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("api", Config{Level: "chatty"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("info line missing: %q", out)
	}
}

func TestAsynqLoggerJoinsArgs(t *testing.T) {
	var buf bytes.Buffer
	l := AsynqLogger{Logger: NewWithOutput("worker", Config{Level: "info"}, &buf)}
	l.Warn("retry ", 3)

	if !strings.Contains(buf.String(), "retry 3") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}
