// Package audit provides pluggable security-event logging for the
// credential vault. Events record what happened to the vault (loads,
// writes, migrations, corruption recovery) and never the secrets
// themselves. Auditing is best-effort: a failing logger must not fail the
// credential operation it describes.
package audit

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Logger is the pluggable audit sink.
type Logger interface {
	// Log records one event. Metadata must never contain secret values.
	Log(action string, success bool, metadata map[string]interface{}) error
	Close() error
}

// Event is one audit record, serialized as a JSON line by the file logger.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SinkType selects the audit implementation.
type SinkType string

const (
	SinkNone SinkType = ""     // auditing disabled
	SinkFile SinkType = "file" // JSON lines appended to a file
)

// Config selects and configures the audit sink. It is small enough for a
// desktop app to ship as a YAML file next to its other settings.
type Config struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Type    SinkType `yaml:"type" json:"type"`
	// Path is the audit log file for SinkFile.
	Path string `yaml:"path" json:"path"`
}

// LoadConfig reads an audit configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse audit config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the logger selected by config. A nil or disabled
// config yields the no-op logger so callers never hold a nil Logger.
func NewLogger(config *Config) (Logger, error) {
	if config == nil || !config.Enabled {
		return NewNoOpLogger(), nil
	}
	switch config.Type {
	case SinkFile:
		return NewFileLogger(config.Path)
	case SinkNone:
		return NewNoOpLogger(), nil
	default:
		return nil, fmt.Errorf("unknown audit sink type: %s", config.Type)
	}
}

func newEventID() string {
	return uuid.NewString()
}
