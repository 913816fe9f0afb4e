package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5000; i++ {
			b.Publish(Event{Name: "KeyPress", Details: "KeyA"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked with zero subscribers")
	}
}

func TestSubscriberSeesPublishOrder(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	for i := 0; i < 100; i++ {
		b.Publish(Event{Name: "MouseMove", Details: fmt.Sprintf("%d,%d", i, i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		ev, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		want := fmt.Sprintf("%d,%d", i, i)
		if ev.Details != want {
			t.Fatalf("event %d: got details %q, want %q", i, ev.Details, want)
		}
	}
}

func TestSubscribeAfterPublishSeesOnlyNewEvents(t *testing.T) {
	b := New()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Name: "KeyPress", Details: "old"})
	}

	sub := b.Subscribe()
	b.Publish(Event{Name: "KeyPress", Details: "new"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Details != "new" {
		t.Fatalf("got %q, want %q (history must not replay)", ev.Details, "new")
	}
}

func TestLaggedSubscriberSkipsForward(t *testing.T) {
	b := NewWithCapacity(4)
	sub := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Details: fmt.Sprintf("%d", i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Events 0-5 fell out of the ring; the next read lands on event 6.
	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Details != "6" {
		t.Fatalf("got %q after lag, want %q", ev.Details, "6")
	}
	for want := 7; want <= 9; want++ {
		ev, err = sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Details != fmt.Sprintf("%d", want) {
			t.Fatalf("got %q, want %d", ev.Details, want)
		}
	}
}

func TestNextBlocksUntilPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	go func() {
		time.Sleep(50 * time.Millisecond)
		b.Publish(Event{Name: "MouseWheel", Details: "dx=0,dy=1"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Name != "MouseWheel" {
		t.Fatalf("got %q, want MouseWheel", ev.Name)
	}
}

func TestNextHonorsContext(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestCloseDrainsThenEnds(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	b.Publish(Event{Details: "last"})
	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next before drain: %v", err)
	}
	if ev.Details != "last" {
		t.Fatalf("got %q, want %q", ev.Details, "last")
	}

	if _, err := sub.Next(ctx); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New()
	b.Close()
	b.Publish(Event{Details: "dropped"})

	sub := b.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sub.Next(ctx); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestConcurrentPublishersAndSubscribers(t *testing.T) {
	b := New()

	const producers = 4
	const perProducer = 500

	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = b.Subscribe()
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Publish(Event{Name: "KeyPress"})
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var rg sync.WaitGroup
	for _, sub := range subs {
		rg.Add(1)
		go func(s *Subscription) {
			defer rg.Done()
			seen := 0
			for {
				_, err := s.Next(ctx)
				if err == ErrClosed {
					break
				}
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				seen++
			}
			// Lag may skip events but never deliver more than published.
			if seen == 0 || seen > producers*perProducer {
				t.Errorf("subscriber saw %d events, published %d", seen, producers*perProducer)
			}
		}(sub)
	}

	wg.Wait()
	b.Close()
	rg.Wait()
}
