package protocol

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Property 6: client->server streaming (DataSync). Registering an observable
// that emits one result sends exactly two frames (connection_init, next) and
// never a subscribe.
func TestClient_DataSyncPush(t *testing.T) {
	m := newFakeMessenger()
	client := NewClientEngine(m, ClientConfig{})

	client.SendConnectionInit(nil)
	source := newFakeEventSource()
	client.AddObservableSubscription(source)

	var obs Observer
	select {
	case obs = <-source.subscribed:
	case <-time.After(time.Second):
		t.Fatal("expected Subscribe to be called")
	}
	obs.OnEvent(resolvedFuture(Result{Data: json.RawMessage(`{"x":1}`)}))

	sent := waitForSent(t, m, 2)
	require.Len(t, sent, 2)

	kind, err := decodeEnvelope([]byte(sent[0]))
	require.NoError(t, err)
	assert.Equal(t, TypeConnectionInit, kind)

	next, err := decodeNext([]byte(sent[1]))
	require.NoError(t, err)

	var pushed Result
	require.NoError(t, json.Unmarshal(next.Payload, &pushed))
	assert.JSONEq(t, `{"x":1}`, string(pushed.Data))
}

// Property 7: bidirectional streaming (DataSync) — a server-side
// subscription fan-out and a client-pushed Next frame coexist without
// interfering with each other.
func TestServer_BidirectionalDataSync(t *testing.T) {
	source := newFakeEventSource()
	m := newFakeMessenger()

	var received []Type
	NewServerEngine(m, DefaultDataSyncServerConfig(ServerConfig{
		Subscriber: func(context.Context, GraphQLRequest) (SubscriptionResult, error) {
			return SubscriptionResult{Stream: source}, nil
		},
		OnNext: func(context.Context, NextFrame, *ServerEngine) error { return nil },
		OnMessage: func(text string) {
			kind, _ := decodeEnvelope([]byte(text))
			received = append(received, kind)
		},
	}))

	initSession(t, m)

	subRaw, err := encodeSubscribe(&SubscribeFrame{ID: "op-1", Payload: GraphQLRequest{Query: "subscription { ticks }"}})
	require.NoError(t, err)
	m.deliver(string(subRaw))

	var obs Observer
	select {
	case obs = <-source.subscribed:
	case <-time.After(time.Second):
		t.Fatal("expected Subscribe to be called")
	}

	nextRaw, err := encodeNext("push-1", json.RawMessage(`{"client":1}`))
	require.NoError(t, err)
	m.deliver(string(nextRaw))

	for i := 1; i <= 3; i++ {
		data, _ := json.Marshal(map[string]int{"tick": i})
		obs.OnEvent(resolvedFuture(Result{Data: data}))
	}
	obs.OnCompleted()

	sent := waitForSent(t, m, 5)
	require.Len(t, sent, 5)

	require.Eventually(t, func() bool { return len(received) >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []Type{TypeConnectionInit, TypeSubscribe, TypeNext}, received)
}
