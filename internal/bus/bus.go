// Package bus provides in-process broadcast of capture events to any number
// of concurrent subscribers.
//
// The bus keeps a bounded ring of recent events. Publishing never blocks and
// never fails because of subscriber state: with no subscribers the event is
// simply retained and eventually overwritten. A subscriber that falls behind
// by more than the ring capacity is skipped forward to the oldest retained
// event; the intervening events are dropped silently. Subscribers therefore
// see events in publish order but must treat the stream as best-effort.
package bus

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the number of events retained for slow subscribers.
const DefaultCapacity = 1024

// ErrClosed is returned by Subscription.Next once the bus has been closed
// and all retained events have been delivered.
var ErrClosed = errors.New("event bus closed")

// Event is a single captured event as delivered to subscribers.
type Event struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Details   string `json:"details"`
}

// Bus is a multi-producer, multi-consumer broadcast channel with bounded
// history. The zero value is not usable; use New.
type Bus struct {
	mu     sync.Mutex
	ring   []Event
	next   uint64 // sequence number of the next event to publish
	closed bool
	wake   chan struct{} // closed and replaced on every publish and on Close
}

// New creates a bus retaining DefaultCapacity events.
func New() *Bus {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a bus retaining up to capacity events for
// subscribers that fall behind.
func NewWithCapacity(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		ring: make([]Event, capacity),
		wake: make(chan struct{}),
	}
}

// Publish appends an event to the ring and wakes waiting subscribers.
// It never blocks and never fails; publishing to a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.ring[b.next%uint64(len(b.ring))] = ev
	b.next++
	close(b.wake)
	b.wake = make(chan struct{})
	b.mu.Unlock()
}

// Close ends the bus. Subscribers drain any retained events they have not
// yet seen, then receive ErrClosed. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.wake)
	}
	b.mu.Unlock()
}

// Subscribe returns a subscription positioned after the most recently
// published event: it receives only events published from this point on.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription{bus: b, pos: b.next}
}

// Subscription is a cursor into the bus's event sequence. A subscription
// holds no resources beyond the cursor itself; abandoning one leaks nothing.
type Subscription struct {
	bus *Bus
	pos uint64
}

// Next returns the next event in publish order, blocking until one is
// available. If the subscription has lagged beyond the retained history it
// jumps to the oldest retained event. Next returns ErrClosed after the bus
// is closed and drained, or the context error if ctx ends first.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.bus.mu.Lock()
		if s.pos < s.bus.next {
			capacity := uint64(len(s.bus.ring))
			if s.bus.next-s.pos > capacity {
				// Lagged: skip forward to the oldest retained event.
				s.pos = s.bus.next - capacity
			}
			ev := s.bus.ring[s.pos%capacity]
			s.pos++
			s.bus.mu.Unlock()
			return ev, nil
		}
		if s.bus.closed {
			s.bus.mu.Unlock()
			return Event{}, ErrClosed
		}
		wake := s.bus.wake
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-wake:
		}
	}
}

// Pending reports how many published events this subscription has not yet
// consumed, capped at the ring capacity.
func (s *Subscription) Pending() int {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	pending := s.bus.next - s.pos
	if capacity := uint64(len(s.bus.ring)); pending > capacity {
		pending = capacity
	}
	return int(pending)
}
