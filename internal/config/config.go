// Package config handles configuration loading and validation for captured.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultListenAddr is the loopback control endpoint.
const DefaultListenAddr = "127.0.0.1:50051"

// Config is the full daemon configuration. Interval-valued fields are
// seconds, so sub-second values like 0.05 stay readable in the file.
type Config struct {
	Listen    ListenConfig    `toml:"listen" json:"listen" yaml:"listen"`
	Capture   CaptureConfig   `toml:"capture" json:"capture" yaml:"capture"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry" yaml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging" json:"logging" yaml:"logging"`
}

// ListenConfig configures the control endpoint.
type ListenConfig struct {
	Addr string `toml:"addr" json:"addr" yaml:"addr"`
}

// CaptureConfig configures the input capture machine.
type CaptureConfig struct {
	// MouseMoveInterval is the pointer-move throttle window in seconds.
	MouseMoveInterval float64 `toml:"mouse_move_interval" json:"mouse_move_interval" yaml:"mouse_move_interval"`

	// ResetOnStop clears held-input state when capture stops.
	ResetOnStop bool `toml:"reset_on_stop" json:"reset_on_stop" yaml:"reset_on_stop"`
}

// TelemetryConfig configures the system snapshot loop.
type TelemetryConfig struct {
	// Interval between snapshots, in seconds.
	Interval float64 `toml:"interval" json:"interval" yaml:"interval"`

	// PublicIPLookup enables the external resolver query.
	PublicIPLookup bool `toml:"public_ip_lookup" json:"public_ip_lookup" yaml:"public_ip_lookup"`

	// CommandTimeout bounds each inventory command, in seconds.
	CommandTimeout float64 `toml:"command_timeout" json:"command_timeout" yaml:"command_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
	Output string `toml:"output" json:"output" yaml:"output"`
	File   string `toml:"file" json:"file" yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr: DefaultListenAddr,
		},
		Capture: CaptureConfig{
			MouseMoveInterval: 0.05,
			ResetOnStop:       false,
		},
		Telemetry: TelemetryConfig{
			Interval:       5,
			PublicIPLookup: true,
			CommandTimeout: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	host, _, err := net.SplitHostPort(c.Listen.Addr)
	if err != nil {
		return fmt.Errorf("listen.addr %q: %w", c.Listen.Addr, err)
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("listen.addr %q: must bind a loopback address", c.Listen.Addr)
	}
	if c.Capture.MouseMoveInterval < 0 {
		return fmt.Errorf("capture.mouse_move_interval must not be negative")
	}
	if c.Telemetry.Interval <= 0 {
		return fmt.Errorf("telemetry.interval must be positive")
	}
	if c.Telemetry.CommandTimeout <= 0 {
		return fmt.Errorf("telemetry.command_timeout must be positive")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: must be text or json", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "file", "both":
	default:
		return fmt.Errorf("logging.output %q: must be stdout, stderr, file or both", c.Logging.Output)
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.File == "" {
		return fmt.Errorf("logging.file required when logging.output is %q", c.Logging.Output)
	}
	return nil
}

func parseLevel(s string) (string, error) {
	switch s {
	case "debug", "info", "warn", "error":
		return s, nil
	default:
		return "", fmt.Errorf("logging.level %q: must be debug, info, warn or error", s)
	}
}

// MouseMoveInterval returns the capture throttle as a duration.
func (c *Config) MouseMoveInterval() time.Duration {
	return secondsToDuration(c.Capture.MouseMoveInterval)
}

// TelemetryInterval returns the snapshot spacing as a duration.
func (c *Config) TelemetryInterval() time.Duration {
	return secondsToDuration(c.Telemetry.Interval)
}

// TelemetryCommandTimeout returns the inventory command bound as a duration.
func (c *Config) TelemetryCommandTimeout() time.Duration {
	return secondsToDuration(c.Telemetry.CommandTimeout)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ApplyEnvOverrides applies CAPTURED_* environment variables on top of
// the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CAPTURED_LISTEN_ADDR"); v != "" {
		c.Listen.Addr = v
	}
	if v := os.Getenv("CAPTURED_MOUSE_MOVE_INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Capture.MouseMoveInterval = f
		}
	}
	if v := os.Getenv("CAPTURED_TELEMETRY_INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Telemetry.Interval = f
		}
	}
	if v := os.Getenv("CAPTURED_PUBLIC_IP_LOOKUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.PublicIPLookup = b
		}
	}
	if v := os.Getenv("CAPTURED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CAPTURED_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CAPTURED_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Save writes the configuration to path as TOML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "captured", "config.toml")
	}
	return "config.toml"
}
