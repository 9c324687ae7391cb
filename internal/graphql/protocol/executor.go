package protocol

import (
	"context"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Result is a single GraphQL response: the (encoded) data plus an ordered
// list of errors. Either may be empty.
type Result struct {
	Data       json.RawMessage        `json:"data,omitempty"`
	Errors     gqlerror.List          `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Executor runs a one-shot (query/mutation) GraphQL request to completion.
// Go's goroutine+channel pair stands in for the spec's event-loop "Future":
// the engine always invokes Executor from its own goroutine and never blocks
// its read loop on it.
type Executor func(ctx context.Context, req GraphQLRequest) (Result, error)

// Subscriber starts a streaming (subscription) GraphQL request. A non-nil
// SubscriptionResult.Stream means a subscription source was established;
// a nil Stream with populated Result.Errors means resolver-level validation
// failed (e.g. the subscription field itself rejected the arguments) without
// ever producing a stream.
type Subscriber func(ctx context.Context, req GraphQLRequest) (SubscriptionResult, error)

// SubscriptionResult is what a Subscriber produces.
type SubscriptionResult struct {
	Result Result
	Stream EventSource
}

// EventFuture represents one pending subscription event. Calling it blocks
// until the event's result is available (or immediately returns if it
// already is) — the idiomatic Go substitute for "Future<Result>".
type EventFuture func(ctx context.Context) (Result, error)

// Observer is the three-capability observer contract a subscription source is
// driven through (§9 design note): at most one of OnEvent (repeatable),
// OnError, or OnCompleted fires per event, and OnError/OnCompleted are each
// terminal. Implementations must not invoke any of these concurrently with
// each other for the same EventSource.
type Observer struct {
	OnEvent     func(EventFuture)
	OnError     func(error)
	OnCompleted func()
}

// EventSource is a polymorphic subscription event producer. Subscribe begins
// delivery through obs and returns a Subscription disposal handle; Dispose
// must be safe to call multiple times and must stop further observer
// invocations once it returns.
type EventSource interface {
	Subscribe(obs Observer) Subscription
}

// Subscription is a disposal handle for an active EventSource subscription.
type Subscription interface {
	Dispose()
}

// AuthHook authenticates/authorizes a connection_init payload. Returning an
// error (including one raised by a panic-turned-error in a Future-based host)
// is equivalent to a rejected future: both close the session with 4401.
type AuthHook func(ctx context.Context, payload json.RawMessage) error

// AllowAll is the default AuthHook used when none is configured: every
// connection_init succeeds.
func AllowAll(context.Context, json.RawMessage) error { return nil }
