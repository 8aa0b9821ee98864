package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	WithComponent(logger, "ipc").Info("connected", String("socket", "/tmp/d.sock"))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Errorf("missing level label: %q", line)
	}
	if !strings.Contains(line, "ipc: connected") {
		t.Errorf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "socket=/tmp/d.sock") {
		t.Errorf("attribute missing: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Warn("problem", String("detail", "disk full"))

	if !strings.Contains(buf.String(), `detail="disk full"`) {
		t.Errorf("value with spaces not quoted: %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info line emitted at warn level: %q", buf.String())
	}

	logger.Error("loud")
	if buf.Len() == 0 {
		t.Error("error line suppressed at warn level")
	}
}

func TestJSONHandlerEmitsStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	WithComponent(logger, "monitor").Info("started", Int("pid", 42))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["level"] != "info" {
		t.Errorf("level = %v", record["level"])
	}
	if record["msg"] != "started" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record[FieldComponent] != "monitor" {
		t.Errorf("component = %v", record[FieldComponent])
	}
	if record["pid"] != float64(42) {
		t.Errorf("pid = %v", record["pid"])
	}
	if _, ok := record["ts"]; !ok {
		t.Error("timestamp key missing")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("unknown format must be rejected")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("dropped")
	logger.Error("dropped too", Error(nil))
}
