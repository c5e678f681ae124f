package events

import (
	"context"
	"sync"
	"time"
)

// InMemoryBus is a process-local Bus implementation. Async publishes run
// each handler in its own goroutine with a bounded timeout so a slow
// subscriber cannot stall the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	timeout  time.Duration
	logErr   func(eventName string, err error)
}

// NewInMemoryBus creates a bus. logErr receives handler failures from async
// publishes; pass nil to discard them.
func NewInMemoryBus(logErr func(eventName string, err error)) *InMemoryBus {
	if logErr == nil {
		logErr = func(string, error) {}
	}
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		timeout:  30 * time.Second,
		logErr:   logErr,
	}
}

// Subscribe registers a handler for an event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously. The publisher's
// context is not propagated so an aborted request does not cancel side effects.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()
			if err := h.Handle(ctx, event); err != nil {
				b.logErr(event.EventName(), err)
			}
		}(h)
	}
}

// PublishSync dispatches the event and waits for every handler, returning the
// first error encountered.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
