package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"urgent_dispatch_backend/platform/logger"
)

// asyncHandlerTimeout bounds how long a detached handler may run once the
// publishing request context is gone.
const asyncHandlerTimeout = 30 * time.Second

// InMemoryBus is a process-local Bus implementation. Handlers registered for
// an event name run for every published event of that name; asynchronous
// handler failures are logged, never propagated to the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously. The handlers
// get a fresh context so they survive the publishing HTTP request ending.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	registered := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range registered {
		handler := h
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), asyncHandlerTimeout)
			defer cancel()
			if err := handler.Handle(ctx, event); err != nil && b.log != nil {
				b.log.Error("event_handler_failed",
					"event", event.EventName(),
					"error", err.Error(),
				)
			}
		}()
	}
}

// PublishSync dispatches the event and waits for every handler, joining errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	registered := b.handlers[event.EventName()]
	b.mu.RUnlock()

	var errs []error
	for _, handler := range registered {
		if err := handler.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Bus = (*InMemoryBus)(nil)
