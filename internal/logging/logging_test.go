package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("live")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("connected", "server", "wss://localhost:3001/live")

	out := buf.String()
	if !strings.Contains(out, "msg=connected") {
		t.Fatalf("expected plain connected message, got: %s", out)
	}
	if !strings.Contains(out, "component=live") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "server=wss://localhost:3001/live") {
		t.Fatalf("expected server field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("sampler")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)
	t.Cleanup(func() { Init("text", "info", nil) })

	L("engine").Info("session state", "active", true)

	out := buf.String()
	if !strings.Contains(out, `"component":"engine"`) {
		t.Fatalf("expected JSON component field, got: %s", out)
	}
	if !strings.Contains(out, `"active":true`) {
		t.Fatalf("expected JSON active field, got: %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	} {
		if got := parseLevel(tc.in).String(); got != tc.want {
			t.Fatalf("parseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
