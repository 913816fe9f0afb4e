// Package monitor periodically snapshots the host inventory and turns
// observed changes into bus events.
package monitor

import (
	"context"
	"sync"
	"time"

	"captured/internal/bus"
	"captured/internal/capture"
	"captured/internal/logging"
	"captured/internal/sysinfo"
)

// Event names published by the monitor.
const (
	EventSystemInfo       = "SystemInfo"
	EventSystemInfoChange = "SystemInfoChange"
)

// DefaultInterval is the spacing between telemetry snapshots.
const DefaultInterval = 5 * time.Second

// Config carries the monitor's tunables.
type Config struct {
	// Interval between snapshots. Zero means DefaultInterval.
	Interval time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Monitor owns the snapshot loop. Snapshots are only taken while the
// shared toggle is enabled, so a stopped capture session costs nothing.
type Monitor struct {
	bus      *bus.Bus
	provider sysinfo.Provider
	toggle   *capture.Toggle
	clock    func() time.Time
	log      *logging.Logger

	mu       sync.Mutex
	interval time.Duration
	prev     *sysinfo.Snapshot
}

// New returns a monitor publishing to b from snapshots of p.
func New(b *bus.Bus, p sysinfo.Provider, t *capture.Toggle, cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		bus:      b,
		provider: p,
		toggle:   t,
		clock:    clock,
		log:      logging.Default().WithComponent("monitor"),
		interval: interval,
	}
}

// SetInterval updates the snapshot spacing. The running loop picks the
// new value up on its next wakeup.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
}

// Interval reports the current snapshot spacing.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Run drives the snapshot loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	timer := time.NewTimer(m.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.tick()
			timer.Reset(m.Interval())
		}
	}
}

// tick takes one snapshot and publishes a change event when the host
// moved since the previous one. A failed collection keeps the previous
// snapshot so a transient error does not fake a change.
func (m *Monitor) tick() {
	if !m.toggle.Enabled() {
		return
	}

	cur, err := m.provider.Collect()
	if err != nil {
		m.log.Warn("system snapshot failed", "error", err)
		return
	}

	m.mu.Lock()
	prev := m.prev
	m.prev = cur
	m.mu.Unlock()

	if prev == nil {
		return
	}
	if diff := sysinfo.Diff(prev, cur); diff != "" {
		m.publish(EventSystemInfoChange, diff)
	}
}

// PublishBaseline emits one full snapshot event. The stream service
// calls this when capture starts so every session opens with the
// complete host picture.
func (m *Monitor) PublishBaseline() {
	snap, err := m.provider.Collect()
	if err != nil {
		m.log.Warn("baseline snapshot failed", "error", err)
		return
	}
	m.publish(EventSystemInfo, snap.Format())
}

func (m *Monitor) publish(name, details string) {
	m.bus.Publish(bus.Event{
		Name:      name,
		Timestamp: m.clock().Format(capture.TimestampLayout),
		Details:   details,
	})
}
