package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captured/internal/bus"
	"captured/internal/capture"
	"captured/internal/sysinfo"
)

// fakeProvider returns queued snapshots in order, then repeats the last.
type fakeProvider struct {
	snaps []*sysinfo.Snapshot
	errs  []error
	calls int
}

func (p *fakeProvider) Collect() (*sysinfo.Snapshot, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.snaps) {
		i = len(p.snaps) - 1
	}
	return p.snaps[i], nil
}

func snapshotWithPublicIP(ip string) *sysinfo.Snapshot {
	return &sysinfo.Snapshot{
		System:  sysinfo.SystemCore{OSVersion: "Ubuntu 24.04", MemoryMB: 8192},
		Network: sysinfo.Network{LocalIP: "10.0.0.2", PublicIP: ip},
	}
}

func newTestMonitor(p sysinfo.Provider, enabled bool) (*Monitor, *bus.Subscription) {
	b := bus.New()
	toggle := &capture.Toggle{}
	toggle.Set(enabled)
	m := New(b, p, toggle, Config{
		Clock: func() time.Time {
			return time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
		},
	})
	return m, b.Subscribe()
}

func drain(t *testing.T, sub *bus.Subscription) []bus.Event {
	t.Helper()
	var events []bus.Event
	for sub.Pending() > 0 {
		ev, err := sub.Next(context.Background())
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestFirstTickEstablishesBaselineSilently(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{snapshotWithPublicIP("203.0.113.7")}}
	m, sub := newTestMonitor(p, true)

	m.tick()

	assert.Empty(t, drain(t, sub))
}

func TestUnchangedSnapshotPublishesNothing(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{snapshotWithPublicIP("203.0.113.7")}}
	m, sub := newTestMonitor(p, true)

	m.tick()
	m.tick()

	assert.Empty(t, drain(t, sub))
}

func TestChangedSnapshotPublishesDiff(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{
		snapshotWithPublicIP("203.0.113.7"),
		snapshotWithPublicIP("198.51.100.4"),
	}}
	m, sub := newTestMonitor(p, true)

	m.tick()
	m.tick()

	events := drain(t, sub)
	require.Len(t, events, 1)
	assert.Equal(t, EventSystemInfoChange, events[0].Name)
	assert.Equal(t, "Public IP changed: 203.0.113.7 -> 198.51.100.4", events[0].Details)
	assert.Equal(t, "2026-03-14 09:26:53.589", events[0].Timestamp)
}

func TestDisabledToggleSkipsTicks(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{snapshotWithPublicIP("203.0.113.7")}}
	m, sub := newTestMonitor(p, false)

	m.tick()
	m.tick()

	assert.Zero(t, p.calls)
	assert.Empty(t, drain(t, sub))
}

func TestCollectFailureKeepsPreviousSnapshot(t *testing.T) {
	p := &fakeProvider{
		snaps: []*sysinfo.Snapshot{
			snapshotWithPublicIP("203.0.113.7"),
			snapshotWithPublicIP("203.0.113.7"),
			snapshotWithPublicIP("198.51.100.4"),
		},
		errs: []error{nil, errors.New("wmic unavailable"), nil},
	}
	m, sub := newTestMonitor(p, true)

	m.tick()
	m.tick()
	m.tick()

	events := drain(t, sub)
	require.Len(t, events, 1)
	assert.Equal(t, "Public IP changed: 203.0.113.7 -> 198.51.100.4", events[0].Details)
}

func TestPublishBaselineEmitsFullSnapshot(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{snapshotWithPublicIP("203.0.113.7")}}
	m, sub := newTestMonitor(p, true)

	m.PublishBaseline()

	events := drain(t, sub)
	require.Len(t, events, 1)
	assert.Equal(t, EventSystemInfo, events[0].Name)
	assert.Contains(t, events[0].Details, `"public_ip": "203.0.113.7"`)
}

func TestPublishBaselineDoesNotSeedDiffBase(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{
		snapshotWithPublicIP("203.0.113.7"),
		snapshotWithPublicIP("198.51.100.4"),
	}}
	m, sub := newTestMonitor(p, true)

	m.PublishBaseline()
	m.tick()

	events := drain(t, sub)
	require.Len(t, events, 1)
	assert.Equal(t, EventSystemInfo, events[0].Name)
}

func TestSetIntervalFloorsToDefault(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{snapshotWithPublicIP("203.0.113.7")}}
	m, _ := newTestMonitor(p, true)

	m.SetInterval(-1)
	assert.Equal(t, DefaultInterval, m.Interval())

	m.SetInterval(30 * time.Second)
	assert.Equal(t, 30*time.Second, m.Interval())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p := &fakeProvider{snaps: []*sysinfo.Snapshot{snapshotWithPublicIP("203.0.113.7")}}
	m, _ := newTestMonitor(p, true)
	m.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
