package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", zap.Int("pump_pwm", 191))
	closeFn()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, `"pump_pwm": 191`) {
		t.Errorf("console output = %q", out)
	}
}

func TestVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Level: "error", Verbose: true, Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("details")
	if !strings.Contains(buf.String(), "details") {
		t.Error("expected debug output with Verbose")
	}
}

func TestFileCoreWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "greenhouse.log")
	var console bytes.Buffer
	log, closeFn, err := New(Options{File: path, MaxSizeMB: 1, Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Named("serial").Info("connected", zap.String("port", "/dev/ttyUSB0"))
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["msg"] != "connected" || entry["port"] != "/dev/ttyUSB0" || entry["logger"] != "serial" {
		t.Errorf("entry = %v", entry)
	}
	if !strings.Contains(console.String(), "connected") {
		t.Error("console core should receive the same entry")
	}
}

func TestBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
