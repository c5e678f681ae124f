package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var order []int
	bus.Subscribe("lead.confirmed", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("lead.confirmed", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 2)
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "lead.confirmed"})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("handlers ran out of order: %v", order)
	}
}

func TestPublishSyncReturnsFirstError(t *testing.T) {
	bus := NewInMemoryBus(nil)
	want := errors.New("boom")
	bus.Subscribe("lead.denied", HandlerFunc(func(context.Context, Event) error {
		return want
	}))

	err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "lead.denied"})
	if !errors.Is(err, want) {
		t.Fatalf("PublishSync error = %v, want %v", err, want)
	}
}

func TestPublishAsyncDelivers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	bus := NewInMemoryBus(nil)
	bus.Subscribe("identity.mismatch", HandlerFunc(func(context.Context, Event) error {
		wg.Done()
		return nil
	}))

	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "identity.mismatch"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestPublishAsyncReportsHandlerErrors(t *testing.T) {
	errCh := make(chan error, 1)
	bus := NewInMemoryBus(func(_ string, err error) { errCh <- err })
	bus.Subscribe("identity.mismatch", HandlerFunc(func(context.Context, Event) error {
		return errors.New("handler failed")
	}))

	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "identity.mismatch"})

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected non-nil handler error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler error was not reported")
	}
}

func TestPublishIgnoresUnknownEvent(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Publish(context.Background(), testEvent{NewBaseEvent(), "nobody.listens"})
	if err := bus.PublishSync(context.Background(), testEvent{NewBaseEvent(), "nobody.listens"}); err != nil {
		t.Fatalf("PublishSync on unsubscribed event: %v", err)
	}
}
