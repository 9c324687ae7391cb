package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientConfig configures a ClientEngine. Every callback is optional; a nil
// callback silently ignores that inbound frame kind.
type ClientConfig struct {
	OnConnectionAck func(frame *ConnectionAckFrame, engine *ClientEngine)
	OnNext          func(frame *NextFrame, engine *ClientEngine)
	OnError         func(frame *ErrorFrame, engine *ClientEngine)
	OnComplete      func(frame *CompleteFrame, engine *ClientEngine)
	OnMessage       func(text string)

	Logger *zap.Logger
}

// ClientEngine is the client-side peer state machine (§4.4).
type ClientEngine struct {
	cfg       ClientConfig
	messenger Messenger

	mu             sync.Mutex
	initSent       bool
	pushSubs       map[string]Subscription // DataSync: id -> disposal handle
}

// NewClientEngine constructs a ClientEngine over messenger and registers it
// as the messenger's receive callback.
func NewClientEngine(messenger Messenger, cfg ClientConfig) *ClientEngine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	e := &ClientEngine{
		cfg:       cfg,
		messenger: messenger,
		pushSubs:  make(map[string]Subscription),
	}
	messenger.OnReceive(e.handleMessage)
	return e
}

// SendConnectionInit emits ConnectionInit with the given (already-encoded)
// payload. Must be called exactly once per session (§4.4).
func (e *ClientEngine) SendConnectionInit(payload json.RawMessage) {
	e.mu.Lock()
	e.initSent = true
	e.mu.Unlock()

	raw, err := encodeConnectionInit(&ConnectionInitFrame{Payload: payload})
	if err != nil {
		return
	}
	e.messenger.Send(string(raw))
}

// SendSubscribe emits a Subscribe frame for the given request and id.
func (e *ClientEngine) SendSubscribe(req GraphQLRequest, id string) {
	raw, err := encodeSubscribe(&SubscribeFrame{ID: id, Payload: req})
	if err != nil {
		return
	}
	e.messenger.Send(string(raw))
}

// SendComplete emits a Complete frame, requesting cancellation of operation
// id.
func (e *ClientEngine) SendComplete(id string) {
	raw, err := encodeComplete(id)
	if err != nil {
		return
	}
	e.messenger.Send(string(raw))
}

// AddObservableSubscription is the DataSync client extension (§4.4, §4.6): it
// subscribes to a host-provided EventSource of pre-computed results and, per
// event, emits a Next{newly-generated id, result} frame to the server. On
// event failure the transport is closed with a GraphQLError close code.
func (e *ClientEngine) AddObservableSubscription(source EventSource) Subscription {
	id := uuid.NewString()

	obs := Observer{
		OnEvent: func(fut EventFuture) {
			result, err := fut(context.Background())
			if err != nil {
				e.failObservable(err)
				return
			}
			raw, err := json.Marshal(result)
			if err != nil {
				e.failObservable(err)
				return
			}
			wire, err := encodeNext(uuid.NewString(), raw)
			if err != nil {
				e.failObservable(err)
				return
			}
			e.messenger.Send(string(wire))
		},
		OnError: func(err error) {
			e.failObservable(err)
		},
		OnCompleted: func() {
			e.mu.Lock()
			delete(e.pushSubs, id)
			e.mu.Unlock()
		},
	}

	sub := source.Subscribe(obs)

	e.mu.Lock()
	e.pushSubs[id] = sub
	e.mu.Unlock()

	return sub
}

func (e *ClientEngine) failObservable(err error) {
	protoErr := WrapGraphQLError(err, CloseInvalidMessage)
	e.messenger.Error(protoErr.WireMessage(), protoErr.CloseCode)
}

// Close disposes every observable subscription registered through
// AddObservableSubscription. Hosts should call this when the underlying
// transport tears down externally (§9 design note).
func (e *ClientEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, sub := range e.pushSubs {
		sub.Dispose()
		delete(e.pushSubs, id)
	}
}

func (e *ClientEngine) handleMessage(text string) {
	if e.cfg.OnMessage != nil {
		e.cfg.OnMessage(text)
	}

	if len(text) >= 2 && text[:2] == "44" {
		return
	}

	data := []byte(text)
	kind, err := decodeEnvelope(data)
	if err != nil {
		e.fail(err.(*Error))
		return
	}

	switch kind {
	case TypeConnectionAck:
		frame, decErr := decodeConnectionAck(data)
		if decErr != nil {
			e.fail(decErr.(*Error))
			return
		}
		if e.cfg.OnConnectionAck != nil {
			e.cfg.OnConnectionAck(frame, e)
		}
	case TypeNext:
		frame, decErr := decodeNext(data)
		if decErr != nil {
			e.fail(asResponseFormatError(decErr))
			return
		}
		if e.cfg.OnNext != nil {
			e.cfg.OnNext(frame, e)
		}
	case TypeError:
		frame, decErr := decodeError(data)
		if decErr != nil {
			e.fail(decErr.(*Error))
			return
		}
		if e.cfg.OnError != nil {
			e.cfg.OnError(frame, e)
		}
	case TypeComplete:
		frame, decErr := decodeComplete(data)
		if decErr != nil {
			e.fail(asResponseFormatError(decErr))
			return
		}
		if e.cfg.OnComplete != nil {
			e.cfg.OnComplete(frame, e)
		}
	default:
		e.fail(ErrInvalidType())
	}
}

// fail reports a decoding failure to the Messenger. Per §4.4, client-side
// decode failures emit error(message, code) on the Messenger; they never
// raise inside user callbacks.
func (e *ClientEngine) fail(err *Error) {
	e.messenger.Error(err.WireMessage(), err.CloseCode)
}
