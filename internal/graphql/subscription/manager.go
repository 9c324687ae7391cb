// Package subscription adapts an in-memory, priority-filtered event bus into
// the protocol package's EventSource contract. It backs the demo gateway's
// server-side streaming subscriptions (cmd/wsgatewayd): a Subscriber resolves
// a subscription field to a Manager.Source(opts), which the protocol engine
// then drives as any other EventSource per spec §4.5.
package subscription

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/nasnetconnect/gqlwsengine/internal/graphql/protocol"
)

// Priority is the minimum delivery priority a subscriber requires; events
// below it are filtered out before ever reaching the subscriber's Observer.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Event is one item published on the bus: a type tag for subscriber routing,
// a priority, and the already-computed GraphQL result to deliver.
type Event struct {
	Type     string
	Priority Priority
	Result   protocol.Result
}

// EventBus is the minimal publish/subscribe-all contract the Manager needs.
// A real deployment would back this with a message broker; the demo gateway
// uses a trivial in-process implementation (see cmd/wsgatewayd).
type EventBus interface {
	SubscribeAll(handler func(context.Context, Event) error) (unsubscribe func(), err error)
}

// ID uniquely identifies a subscription registered with the Manager.
type ID = ulid.ULID

// Options configures one Manager.Source call.
type Options struct {
	// EventTypes restricts delivery to these event types; empty means all.
	EventTypes []string
	// Priority is the minimum Event.Priority this subscriber accepts.
	Priority Priority
	// Filter is an optional additional predicate, applied after type and
	// priority matching.
	Filter func(Event) bool
}

type entry struct {
	id   ID
	opts Options
	obs  protocol.Observer
}

// Manager distributes bus events to registered subscribers by type,
// priority, and custom filter, adapting each live registration into a
// protocol.EventSource/protocol.Subscription pair.
type Manager struct {
	eventBus       EventBus
	unsubscribeBus func()

	mu     sync.RWMutex
	subs   map[ID]*entry
	closed bool

	totalDelivered uint64
	totalDropped   uint64
}

// NewManager creates a Manager bound to eventBus. A nil eventBus is valid
// (Source still works; it simply never receives events).
func NewManager(eventBus EventBus) *Manager {
	m := &Manager{
		eventBus: eventBus,
		subs:     make(map[ID]*entry),
	}
	if eventBus != nil {
		if unsub, err := eventBus.SubscribeAll(m.handleEvent); err == nil {
			m.unsubscribeBus = unsub
		}
	}
	return m
}

// Source returns a protocol.EventSource bound to opts. The Subscriber that
// resolves a streaming GraphQL operation (spec §4.5) returns this as
// SubscriptionResult.Stream.
func (m *Manager) Source(opts Options) protocol.EventSource {
	return &managerSource{manager: m, opts: opts}
}

type managerSource struct {
	manager *Manager
	opts    Options
}

func (s *managerSource) Subscribe(obs protocol.Observer) protocol.Subscription {
	m := s.manager

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		obs.OnCompleted()
		return noopSubscription{}
	}

	id := ulid.Make()
	m.subs[id] = &entry{id: id, opts: s.opts, obs: obs}
	return &managerSubscription{manager: m, id: id}
}

type managerSubscription struct {
	manager *Manager
	id      ID
	once    sync.Once
}

func (s *managerSubscription) Dispose() {
	s.once.Do(func() {
		s.manager.mu.Lock()
		delete(s.manager.subs, s.id)
		s.manager.mu.Unlock()
	})
}

type noopSubscription struct{}

func (noopSubscription) Dispose() {}

// handleEvent is the bus callback; it fans event out to every matching
// subscriber's Observer as an already-resolved EventFuture (the bus
// delivers fully-computed results, so there is nothing to block on).
func (m *Manager) handleEvent(_ context.Context, event Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil
	}

	for _, sub := range m.subs {
		if !matchesEventTypes(event.Type, sub.opts.EventTypes) {
			continue
		}
		if event.Priority < sub.opts.Priority {
			m.totalDropped++
			continue
		}
		if sub.opts.Filter != nil && !sub.opts.Filter(event) {
			continue
		}

		result := event.Result
		sub.obs.OnEvent(func(context.Context) (protocol.Result, error) {
			return result, nil
		})
		m.totalDelivered++
	}

	return nil
}

func matchesEventTypes(eventType string, subscribed []string) bool {
	if len(subscribed) == 0 {
		return true
	}
	for _, t := range subscribed {
		if t == eventType || t == "*" {
			return true
		}
	}
	return false
}

// Stats reports delivery counters, useful for the demo gateway's health
// endpoint.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ManagerStats{
		ActiveSubscriptions: len(m.subs),
		TotalDelivered:      m.totalDelivered,
		TotalDropped:        m.totalDropped,
	}
}

// ManagerStats is a point-in-time snapshot of Manager delivery counters.
type ManagerStats struct {
	ActiveSubscriptions int
	TotalDelivered      uint64
	TotalDropped        uint64
}

// Close unregisters from the event bus and completes every live subscriber,
// mirroring the disposal-bag pattern the protocol engines use on transport
// close.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.unsubscribeBus != nil {
		m.unsubscribeBus()
	}
	for id, e := range m.subs {
		e.obs.OnCompleted()
		delete(m.subs, id)
	}
	return nil
}
