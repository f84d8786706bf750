package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings is the server configuration, read from the environment.
type Settings struct {
	Port int `envconfig:"PORT" default:"8765"`

	// Tool invocation
	CjpmBin    string   `envconfig:"CJPM_BIN" default:"cjpm"`
	ToolDir    string   `envconfig:"TOOL_DIR" default:"."`
	ToolDriver string   `envconfig:"TOOL_DRIVER" default:"cjpm"`
	ToolArgs   []string `envconfig:"TOOL_ARGS" default:""`
	UsePTY     bool     `envconfig:"USE_PTY" default:"true"`

	// Session behavior
	IdleTimeoutMs  int  `envconfig:"IDLE_TIMEOUT_MS" default:"300000"`
	NormalizeInput bool `envconfig:"NORMALIZE_INPUT" default:"false"`

	// Event log sinks, empty disables
	EventLog string `envconfig:"EVENT_LOG" default:""`
	EventDB  string `envconfig:"EVENT_DB" default:""`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads Settings from the environment.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", s.Port)
	}
	if s.CjpmBin == "" {
		return nil, fmt.Errorf("CJPM_BIN must not be empty")
	}
	return &s, nil
}

// IdleTimeout returns the idle timeout. Zero means disabled.
func (s *Settings) IdleTimeout() time.Duration {
	if s.IdleTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(s.IdleTimeoutMs) * time.Millisecond
}

// ListenAddr returns the HTTP listen address.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf(":%d", s.Port)
}
