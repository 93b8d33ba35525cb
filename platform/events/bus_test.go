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
	Value int
}

func (testEvent) EventName() string { return "test.event" }

type recordingHandler struct {
	mu     sync.Mutex
	seen   []int
	err    error
	notify chan struct{}
}

func (h *recordingHandler) Handle(_ context.Context, event Event) error {
	e := event.(testEvent)
	h.mu.Lock()
	h.seen = append(h.seen, e.Value)
	h.mu.Unlock()
	if h.notify != nil {
		h.notify <- struct{}{}
	}
	return h.err
}

func (h *recordingHandler) values() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.seen))
	copy(out, h.seen)
	return out
}

func TestInMemoryBus_PublishSyncDeliversToAllHandlers(t *testing.T) {
	bus := NewInMemoryBus(nil)

	first := &recordingHandler{}
	second := &recordingHandler{}
	bus.Subscribe(testEvent{}.EventName(), first)
	bus.Subscribe(testEvent{}.EventName(), second)

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), Value: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := first.values(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("first handler saw %v, want [7]", got)
	}
	if got := second.values(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("second handler saw %v, want [7]", got)
	}
}

func TestInMemoryBus_PublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)

	failing := &recordingHandler{err: errors.New("boom")}
	healthy := &recordingHandler{}
	bus.Subscribe(testEvent{}.EventName(), failing)
	bus.Subscribe(testEvent{}.EventName(), healthy)

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
	if err == nil {
		t.Fatal("expected joined handler error")
	}
	if got := healthy.values(); len(got) != 1 {
		t.Fatalf("expected healthy handler to still run, saw %v", got)
	}
}

func TestInMemoryBus_PublishIsAsynchronous(t *testing.T) {
	bus := NewInMemoryBus(nil)

	handler := &recordingHandler{notify: make(chan struct{}, 1)}
	bus.Subscribe(testEvent{}.EventName(), handler)

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), Value: 1})

	select {
	case <-handler.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestInMemoryBus_UnsubscribedEventIsIgnored(t *testing.T) {
	bus := NewInMemoryBus(nil)

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent()}); err != nil {
		t.Fatalf("expected no error for event without handlers, got %v", err)
	}
}

func TestHandlerFunc_Adapts(t *testing.T) {
	called := false
	fn := HandlerFunc(func(context.Context, Event) error {
		called = true
		return nil
	})

	if err := fn.Handle(context.Background(), testEvent{BaseEvent: NewBaseEvent()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected wrapped function to be called")
	}
}
