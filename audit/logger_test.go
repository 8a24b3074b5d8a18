package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoggerDisabled(t *testing.T) {
	for _, cfg := range []*Config{nil, {Enabled: false}, {Enabled: true, Type: SinkNone}} {
		logger, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("NewLogger(%+v) failed: %v", cfg, err)
		}
		if _, ok := logger.(*NoOpLogger); !ok {
			t.Errorf("NewLogger(%+v) = %T, want *NoOpLogger", cfg, logger)
		}
	}
}

func TestNewLoggerUnknownSink(t *testing.T) {
	if _, err := NewLogger(&Config{Enabled: true, Type: "syslog"}); err == nil {
		t.Error("expected error for unknown sink type")
	}
}

func TestFileLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	if err := logger.Log("vault_migrated", true, map[string]interface{}{"credentials": 3}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Log("backend_get_failed", false, nil); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		events = append(events, event)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Action != "vault_migrated" || !events[0].Success {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Action != "backend_get_failed" || events[1].Success {
		t.Errorf("unexpected second event: %+v", events[1])
	}
	if events[0].ID == "" || events[0].ID == events[1].ID {
		t.Error("event IDs must be unique and non-empty")
	}
}

func TestFileLoggerClosedRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Log("x", true, nil); err == nil {
		t.Error("expected error writing to a closed logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close errored: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")
	content := "enabled: true\ntype: file\npath: /tmp/audit.log\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Enabled || cfg.Type != SinkFile || cfg.Path != "/tmp/audit.log" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
