package protocol

import (
	"context"
	"sync"
)

// fakeMessenger is an in-memory Messenger double: Send appends to a
// goroutine-safe log, deliver() feeds text in as if received from the peer,
// and Error/Close record the terminal outcome exactly once.
type fakeMessenger struct {
	mu        sync.Mutex
	sent      []string
	onReceive func(string)
	closed    bool
	errCalled bool
	errMsg    string
	errCode   int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{}
}

func (m *fakeMessenger) Send(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
}

func (m *fakeMessenger) OnReceive(callback func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReceive = callback
}

func (m *fakeMessenger) Error(message string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errCalled {
		return
	}
	m.errCalled = true
	m.errMsg = message
	m.errCode = code
	m.closed = true
}

func (m *fakeMessenger) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// deliver feeds text to whatever OnReceive callback is currently registered,
// mimicking an inbound peer message.
func (m *fakeMessenger) deliver(text string) {
	m.mu.Lock()
	cb := m.onReceive
	m.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (m *fakeMessenger) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *fakeMessenger) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *fakeMessenger) ErrorCall() (called bool, msg string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errCalled, m.errMsg, m.errCode
}

// fakeEventSource is an EventSource double driven entirely by test code: the
// test calls emit/fail/complete on the Observer captured from Subscribe.
type fakeEventSource struct {
	subscribed chan Observer
}

func newFakeEventSource() *fakeEventSource {
	return &fakeEventSource{subscribed: make(chan Observer, 1)}
}

func (s *fakeEventSource) Subscribe(obs Observer) Subscription {
	s.subscribed <- obs
	return fakeSubscription{}
}

type fakeSubscription struct{}

func (fakeSubscription) Dispose() {}

// resolvedFuture builds an EventFuture that resolves immediately to result.
func resolvedFuture(result Result) EventFuture {
	return func(ctx context.Context) (Result, error) { return result, nil }
}
