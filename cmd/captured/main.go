// captured - Host input capture daemon
//
// captured watches the machine's input devices, normalizes raw key and
// pointer activity into logical events, and serves them to local
// clients over a loopback control endpoint. A telemetry loop publishes
// host inventory changes into the same event stream.
//
//	captured -config /etc/captured/config.toml
//
// Capture is off until a client requests it; see capturectl.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"captured/internal/bus"
	"captured/internal/capture"
	"captured/internal/config"
	"captured/internal/ipc"
	"captured/internal/logging"
	"captured/internal/monitor"
	"captured/internal/sysinfo"
)

const version = "1.0.0"

func main() {
	var (
		configPath  = flag.String("config", "", "config file path (default: per-user config dir)")
		listenAddr  = flag.String("addr", "", "override the loopback listen address")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("captured %s\n", version)
		return
	}

	if err := run(*configPath, *listenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "captured: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr string) error {
	path := configPath
	if path == "" {
		path = config.ConfigPath()
	}

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	defer loader.Close()

	if listenAddr != "" {
		cfg.Listen.Addr = listenAddr
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logging.SetDefault(log)
	defer log.Close()

	log.Info("starting", "version", version, "config", path, "addr", cfg.Listen.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := bus.New()
	toggle := &capture.Toggle{}
	machine := capture.NewMachine(events, toggle, capture.Config{
		MouseMoveInterval: cfg.MouseMoveInterval(),
		ResetOnStop:       cfg.Capture.ResetOnStop,
	})

	collector := sysinfo.NewCollector()
	collector.CommandTimeout = cfg.TelemetryCommandTimeout()
	collector.LookupPublicIP = cfg.Telemetry.PublicIPLookup

	logStartupSnapshot(log, collector)

	mon := monitor.New(events, collector, toggle, monitor.Config{
		Interval: cfg.TelemetryInterval(),
	})
	go mon.Run(ctx)

	go runSource(ctx, log, machine)

	loader.OnChange(func(next *config.Config) {
		machine.SetMouseMoveInterval(next.MouseMoveInterval())
		mon.SetInterval(next.TelemetryInterval())
		log.Info("config reloaded",
			"mouse_move_interval", next.MouseMoveInterval(),
			"telemetry_interval", next.TelemetryInterval())
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config watch unavailable", "error", err)
	}
	go func() {
		for err := range loader.Errors() {
			log.Warn("config reload failed", "error", err)
		}
	}()

	service := ipc.NewService(toggle, machine, mon, version)
	serverCfg := ipc.DefaultServerConfig(cfg.Listen.Addr)
	serverCfg.Version = version
	server := ipc.NewServer(serverCfg, service, events)
	if err := server.Start(); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen.Addr, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	server.Stop()
	cancel()
	events.Close()
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.File,
		Component: "captured",
	})
}

// runSource pumps raw input events into the machine. The reader is
// pinned to one OS thread; platform input APIs assume a stable thread.
func runSource(ctx context.Context, log *logging.Logger, machine *capture.Machine) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	source := capture.NewSource()
	err := source.Run(ctx, machine.HandleRaw)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, capture.ErrNotAvailable):
		// Control endpoint and telemetry still work without input
		// devices, for example inside a container.
		log.Warn("input capture unavailable on this host", "error", err)
	default:
		log.Error("input source failed", "error", err)
	}
}

func logStartupSnapshot(log *logging.Logger, provider sysinfo.Provider) {
	snap, err := provider.Collect()
	if err != nil {
		log.Warn("startup snapshot failed", "error", err)
		return
	}
	log.Info("host snapshot",
		"os", snap.System.OSVersion,
		"memory_mb", snap.System.MemoryMB,
		"local_ip", snap.Network.LocalIP,
		"machine", snap.System.MachineSignature)
}
