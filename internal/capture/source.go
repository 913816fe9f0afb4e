package capture

import (
	"context"
	"errors"
)

// Kind identifies a raw input event delivered by a Source.
type Kind int

const (
	KeyDown Kind = iota
	KeyUp
	ButtonDown
	ButtonUp
	Move
	Wheel
)

// RawEvent is one OS-level input event before classification.
type RawEvent struct {
	Kind   Kind
	Key    string  // key identifier for KeyDown/KeyUp
	Button string  // button identifier for ButtonDown/ButtonUp
	X, Y   float64 // absolute cursor position for Move
	DX, DY int     // signed scroll deltas for Wheel
}

// Source delivers raw input events through a registered callback.
//
// Run blocks until the context is cancelled or the underlying hook fails;
// it invokes emit on its own goroutine for every event. A Source that
// cannot register (missing permission, unsupported platform) returns
// ErrNotAvailable from Run; the daemon then continues without input
// capture while telemetry and the control surface keep working.
type Source interface {
	Run(ctx context.Context, emit func(RawEvent)) error
}

// ErrNotAvailable is returned when no input source can be registered on
// this platform with current permissions.
var ErrNotAvailable = errors.New("input source not available")

// NewSource returns the input source for the current platform.
func NewSource() Source {
	return newPlatformSource()
}

// SimulatedSource is an input source for testing that replays injected
// events instead of hooking real devices.
type SimulatedSource struct {
	events chan RawEvent
}

// NewSimulatedSource creates a source for testing.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{events: make(chan RawEvent, 64)}
}

// Inject queues a raw event for delivery.
func (s *SimulatedSource) Inject(ev RawEvent) {
	s.events <- ev
}

// Run delivers injected events until the context ends.
func (s *SimulatedSource) Run(ctx context.Context, emit func(RawEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			emit(ev)
		}
	}
}
