// Package capture turns the raw input event feed into discrete, deduplicated,
// classified events and publishes them to the event bus.
//
// The state machine runs on the input source's callback goroutine, which is
// locked to an OS thread for the process lifetime. Nothing here may block:
// classification touches only the machine's own state under a short,
// uncontended lock, and publishing to the bus is non-blocking by contract.
package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"captured/internal/bus"
)

// Event names produced by the state machine.
const (
	EventKeyPress           = "KeyPress"
	EventKeyRelease         = "KeyRelease"
	EventMouseButtonPress   = "MouseButtonPress"
	EventMouseButtonRelease = "MouseButtonRelease"
	EventMouseMove          = "MouseMove"
	EventMouseWheel         = "MouseWheel"
)

// DefaultMouseMoveInterval is the minimum spacing between accepted
// pointer-move events.
const DefaultMouseMoveInterval = 50 * time.Millisecond

// TimestampLayout formats event timestamps with millisecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Toggle is the shared capture on/off switch. It is written by the stream
// control service and read on every raw event and telemetry tick. Relaxed
// visibility is acceptable: both readers tolerate observing a flip late.
type Toggle struct {
	enabled atomic.Bool
}

// Set switches capture on or off.
func (t *Toggle) Set(enabled bool) {
	t.enabled.Store(enabled)
}

// Enabled reports whether capture is currently on.
func (t *Toggle) Enabled() bool {
	return t.enabled.Load()
}

// Config controls state machine behaviour.
type Config struct {
	// MouseMoveInterval is the minimum spacing between accepted
	// pointer-move events. Zero means DefaultMouseMoveInterval.
	MouseMoveInterval time.Duration

	// ResetOnStop clears the pressed-key and pressed-button sets when the
	// control service stops capture. The default (false) keeps the sets,
	// so a key held across a stop/start cycle does not emit a second
	// KeyPress. With reset enabled, re-enabling treats every key as
	// released, trading a possible duplicate press for a clean slate.
	ResetOnStop bool

	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time
}

// Machine is the capture state machine. HandleRaw is its single entry
// point, invoked by the input source for every raw event.
type Machine struct {
	bus    *bus.Bus
	toggle *Toggle
	clock  func() time.Time

	resetOnStop bool

	// state below is guarded by mu; every critical section is a few map
	// operations, so the lock stays uncontended on the hot path
	mu             sync.Mutex
	interval       time.Duration
	pressedKeys    map[string]struct{}
	pressedButtons map[string]struct{}
	lastMove       time.Time
}

// NewMachine creates a state machine publishing to b, gated by t.
func NewMachine(b *bus.Bus, t *Toggle, cfg Config) *Machine {
	interval := cfg.MouseMoveInterval
	if interval <= 0 {
		interval = DefaultMouseMoveInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Machine{
		bus:            b,
		toggle:         t,
		clock:          clock,
		resetOnStop:    cfg.ResetOnStop,
		interval:       interval,
		pressedKeys:    make(map[string]struct{}),
		pressedButtons: make(map[string]struct{}),
	}
}

// SetMouseMoveInterval replaces the pointer-move throttle interval.
// Non-positive values restore the default.
func (m *Machine) SetMouseMoveInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultMouseMoveInterval
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
}

// MouseMoveInterval returns the current throttle interval.
func (m *Machine) MouseMoveInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// ResetOnStop reports whether the machine was configured to clear pressed
// state when capture stops.
func (m *Machine) ResetOnStop() bool {
	return m.resetOnStop
}

// Reset clears the pressed-key and pressed-button sets.
func (m *Machine) Reset() {
	m.mu.Lock()
	clear(m.pressedKeys)
	clear(m.pressedButtons)
	m.mu.Unlock()
}

// HandleRaw classifies one raw event and, if accepted, publishes it.
// With capture disabled the event is dropped with no state mutation, so
// state accumulated before a stop stays valid across a later start.
func (m *Machine) HandleRaw(raw RawEvent) {
	if !m.toggle.Enabled() {
		return
	}

	name, details, ok := m.classify(raw)
	if !ok {
		return
	}

	m.bus.Publish(bus.Event{
		Name:      name,
		Timestamp: m.clock().Format(TimestampLayout),
		Details:   details,
	})
}

// classify applies the dedup and throttle rules. It returns ok=false for
// suppressed events.
func (m *Machine) classify(raw RawEvent) (name, details string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch raw.Kind {
	case KeyDown:
		if _, held := m.pressedKeys[raw.Key]; held {
			return "", "", false
		}
		m.pressedKeys[raw.Key] = struct{}{}
		return EventKeyPress, raw.Key, true

	case KeyUp:
		// Always emit, even if the down event was missed, so a stuck
		// entry self-heals.
		delete(m.pressedKeys, raw.Key)
		return EventKeyRelease, raw.Key, true

	case ButtonDown:
		if _, held := m.pressedButtons[raw.Button]; held {
			return "", "", false
		}
		m.pressedButtons[raw.Button] = struct{}{}
		return EventMouseButtonPress, raw.Button, true

	case ButtonUp:
		delete(m.pressedButtons, raw.Button)
		return EventMouseButtonRelease, raw.Button, true

	case Move:
		now := m.clock()
		if !m.lastMove.IsZero() && now.Sub(m.lastMove) < m.interval {
			return "", "", false
		}
		m.lastMove = now
		return EventMouseMove, fmt.Sprintf("%v,%v", raw.X, raw.Y), true

	case Wheel:
		return EventMouseWheel, fmt.Sprintf("dx=%d,dy=%d", raw.DX, raw.DY), true
	}

	return "", "", false
}
