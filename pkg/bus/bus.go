package bus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tinyland-inc/mediassist/pkg/logger"
)

// EventBus carries engine events to the hosting surface.
type EventBus struct {
	events  chan Event
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
}

func NewEventBus() *EventBus {
	return NewEventBusSize(100)
}

func NewEventBusSize(size int) *EventBus {
	return &EventBus{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Notify publishes without blocking. When the buffer is full the event is
// dropped and counted; engines call this from their own goroutines and must
// never stall on a slow surface.
func (b *EventBus) Notify(ev Event) {
	if b.closed.Load() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case b.events <- ev:
	default:
		n := b.dropped.Add(1)
		logger.DebugCF("bus", "Event dropped, buffer full", map[string]any{
			"source":  ev.Source,
			"kind":    ev.Kind,
			"dropped": n,
		})
	}
}

func (b *EventBus) Subscribe(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-b.events:
		return ev, ok
	case <-b.done:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

// Dropped reports how many events Notify discarded.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *EventBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}

var _ Notifier = (*EventBus)(nil)
