package main

import (
	"context"
	"sync"

	"github.com/nasnetconnect/gqlwsengine/internal/graphql/subscription"
)

// inProcessBus is a trivial in-memory subscription.EventBus: every published
// Event is delivered synchronously to every live handler. A real deployment
// would back subscription.Manager with a message broker instead.
type inProcessBus struct {
	mu       sync.RWMutex
	handlers map[int]func(context.Context, subscription.Event) error
	nextID   int
}

func newInProcessBus() *inProcessBus {
	return &inProcessBus{handlers: make(map[int]func(context.Context, subscription.Event) error)}
}

func (b *inProcessBus) SubscribeAll(handler func(context.Context, subscription.Event) error) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}

func (b *inProcessBus) Publish(ctx context.Context, event subscription.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		_ = h(ctx, event)
	}
}
