package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultListenAddr, cfg.Listen.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.MouseMoveInterval())
	assert.Equal(t, 5*time.Second, cfg.TelemetryInterval())
}

func TestValidateRejectsNonLoopbackListen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen.Addr = "0.0.0.0:50051"
	assert.Error(t, cfg.Validate())

	cfg.Listen.Addr = "192.168.1.5:50051"
	assert.Error(t, cfg.Validate())

	cfg.Listen.Addr = "127.0.0.1:9000"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadIntervals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture.MouseMoveInterval = -0.01
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Telemetry.Interval = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsFileOutputWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = "file"
	assert.Error(t, cfg.Validate())

	cfg.Logging.File = "/tmp/captured.log"
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[listen]
addr = "127.0.0.1:6000"

[capture]
mouse_move_interval = 0.2
reset_on_stop = true

[telemetry]
interval = 30
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.Listen.Addr)
	assert.Equal(t, 200*time.Millisecond, cfg.MouseMoveInterval())
	assert.True(t, cfg.Capture.ResetOnStop)
	assert.Equal(t, 30*time.Second, cfg.TelemetryInterval())
	// untouched sections keep defaults
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen:\n  addr: \"127.0.0.1:7000\"\ntelemetry:\n  interval: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Listen.Addr)
	assert.Equal(t, 10*time.Second, cfg.TelemetryInterval())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.toml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[telemetry]\ninterval = -5\n"), 0o644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAPTURED_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("CAPTURED_MOUSE_MOVE_INTERVAL", "0.1")
	t.Setenv("CAPTURED_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "127.0.0.1:9999", cfg.Listen.Addr)
	assert.Equal(t, 100*time.Millisecond, cfg.MouseMoveInterval())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved", "config.toml")

	cfg := DefaultConfig()
	cfg.Capture.MouseMoveInterval = 0.25
	require.NoError(t, cfg.Save(path))

	loaded, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, loaded.MouseMoveInterval())
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultListenAddr, cfg.Listen.Addr)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestWatchReloadInvokesCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[capture]\nmouse_move_interval = 0.05\n"), 0o644))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)
	defer loader.Close()

	reloaded := make(chan *Config, 1)
	loader.OnChange(func(c *Config) { reloaded <- c })
	require.NoError(t, loader.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[capture]\nmouse_move_interval = 0.5\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 500*time.Millisecond, cfg.MouseMoveInterval())
	case <-time.After(3 * time.Second):
		t.Fatal("config reload callback never fired")
	}
}

func TestWatchKeepsOldConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[telemetry]\ninterval = 5\n"), 0o644))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)
	defer loader.Close()

	require.NoError(t, loader.Watch())
	require.NoError(t, os.WriteFile(path, []byte("[telemetry]\ninterval = -1\n"), 0o644))

	select {
	case err := <-loader.Errors():
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a reload error")
	}
	assert.Equal(t, 5*time.Second, loader.Config().TelemetryInterval())
}
