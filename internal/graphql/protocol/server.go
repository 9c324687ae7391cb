package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// ClientCompleteBehavior resolves the spec's §9 open question about what a
// baseline (non-DataSync) server does when the client sends a C->S Complete.
type ClientCompleteBehavior int

const (
	// ClientCompleteExit calls OnExit, implying session teardown. This is the
	// baseline profile's default.
	ClientCompleteExit ClientCompleteBehavior = iota
	// ClientCompleteOperationComplete calls OnOperationComplete(id) and
	// leaves the session open. This is the DataSync profile's default.
	ClientCompleteOperationComplete
)

// ServerConfig configures a ServerEngine. Executor and Subscriber are
// required; every hook defaults to a no-op.
type ServerConfig struct {
	Executor   Executor
	Subscriber Subscriber

	// Auth defaults to AllowAll.
	Auth AuthHook

	OnExit              func()
	OnMessage           func(text string)
	OnOperationComplete func(id string)
	OnOperationError    func(id string, errs gqlerror.List)

	// DataSync enables the Next (C->S) dispatch kind and OnNext hook (§4.6).
	DataSync bool
	// OnNext handles a client-originated Next frame. Required when DataSync
	// is true; a failing future surfaces as Error{id, [err]}.
	OnNext func(ctx context.Context, frame NextFrame, engine *ServerEngine) error

	// OnClientComplete resolves the §9 open question; see
	// ClientCompleteBehavior.
	OnClientComplete ClientCompleteBehavior
	// CloseOnSubscriptionComplete resolves the §9 open question about
	// whether the transport closes once a subscription's source completes.
	CloseOnSubscriptionComplete bool

	Logger *zap.Logger
}

// DefaultServerConfig returns the baseline profile's defaults layered onto
// cfg: AllowAll auth, ClientCompleteExit, CloseOnSubscriptionComplete=true,
// DataSync disabled.
func DefaultServerConfig(cfg ServerConfig) ServerConfig {
	if cfg.Auth == nil {
		cfg.Auth = AllowAll
	}
	cfg.OnClientComplete = ClientCompleteExit
	cfg.CloseOnSubscriptionComplete = true
	cfg.DataSync = false
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// DefaultDataSyncServerConfig returns the DataSync profile's defaults
// layered onto cfg: ClientCompleteOperationComplete,
// CloseOnSubscriptionComplete=false, DataSync enabled.
func DefaultDataSyncServerConfig(cfg ServerConfig) ServerConfig {
	if cfg.Auth == nil {
		cfg.Auth = AllowAll
	}
	cfg.OnClientComplete = ClientCompleteOperationComplete
	cfg.CloseOnSubscriptionComplete = false
	cfg.DataSync = true
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// operationState tracks one active streaming subscription's disposal handle.
type operationState struct {
	sub      Subscription
	terminal bool
}

// ServerEngine is the server-side peer state machine (§4.3). One instance is
// bound to exactly one Messenger for the lifetime of one session.
type ServerEngine struct {
	cfg       ServerConfig
	messenger Messenger

	mu          sync.Mutex
	initialized bool
	ops         map[string]*operationState
}

// NewServerEngine constructs a ServerEngine over messenger and registers it
// as the messenger's receive callback. cfg should come from
// DefaultServerConfig or DefaultDataSyncServerConfig with Executor/Subscriber
// (and, for DataSync, OnNext) filled in.
func NewServerEngine(messenger Messenger, cfg ServerConfig) *ServerEngine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Auth == nil {
		cfg.Auth = AllowAll
	}
	e := &ServerEngine{
		cfg:       cfg,
		messenger: messenger,
		ops:       make(map[string]*operationState),
	}
	messenger.OnReceive(e.handleMessage)
	return e
}

// Close drains every outstanding subscription's disposal handle. Hosts
// should call this when the underlying transport tears down externally, so
// active subscriptions are never leaked (§9 design note).
func (e *ServerEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposeAllLocked()
}

func (e *ServerEngine) disposeAllLocked() {
	for id, op := range e.ops {
		if op.sub != nil {
			op.sub.Dispose()
		}
		delete(e.ops, id)
	}
}

func (e *ServerEngine) handleMessage(text string) {
	if e.cfg.OnMessage != nil {
		e.cfg.OnMessage(text)
	}

	// Quirk: some transports re-enter an already-issued close-code echo as a
	// regular text message; frames beginning with "44" are dropped silently
	// before decoding (§4.2).
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
	case TypeConnectionInit:
		e.handleConnectionInit(data)
	case TypeSubscribe:
		e.handleSubscribe(data)
	case TypeComplete:
		e.handleComplete(data)
	case TypeNext:
		if e.cfg.DataSync {
			e.handleNext(data)
			return
		}
		e.fail(ErrInvalidType())
	default:
		e.fail(ErrInvalidType())
	}
}

func (e *ServerEngine) fail(err *Error) {
	e.messenger.Error(err.WireMessage(), err.CloseCode)
}

func (e *ServerEngine) handleConnectionInit(data []byte) {
	frame, decErr := decodeConnectionInit(data)
	if decErr != nil {
		e.fail(decErr.(*Error))
		return
	}

	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		e.fail(ErrTooManyInitializations())
		return
	}
	e.mu.Unlock()

	go func() {
		authErr := e.cfg.Auth(context.Background(), frame.Payload)

		e.mu.Lock()
		alreadyInit := e.initialized
		if !alreadyInit && authErr == nil {
			e.initialized = true
		}
		e.mu.Unlock()

		switch {
		case alreadyInit:
			// A second init raced in while auth was pending.
			e.fail(ErrTooManyInitializations())
		case authErr != nil:
			e.fail(ErrUnauthorized())
		default:
			raw, err := encodeConnectionAck(&ConnectionAckFrame{})
			if err == nil {
				e.messenger.Send(string(raw))
			}
		}
	}()
}

func (e *ServerEngine) requireInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *ServerEngine) handleSubscribe(data []byte) {
	if !e.requireInitialized() {
		e.fail(ErrNotInitialized())
		return
	}

	frame, decErr := decodeSubscribe(data)
	if decErr != nil {
		e.fail(decErr.(*Error))
		return
	}

	kind, clsErr := ClassifyOperation(frame.Payload.Query, frame.Payload.OperationName)
	if clsErr != nil {
		e.emitOperationError(frame.ID, gqlerror.List{clsErr})
		return
	}

	if kind == OperationStreaming {
		e.startStreaming(frame.ID, frame.Payload)
		return
	}
	e.startOneShot(frame.ID, frame.Payload)
}

func (e *ServerEngine) startOneShot(id string, req GraphQLRequest) {
	go func() {
		result, err := e.cfg.Executor(context.Background(), req)
		errs := result.Errors
		if err != nil {
			errs = gqlerror.List{wrapErr(err)}
			result = Result{Errors: errs}
		}
		e.sendNext(id, result)
		e.finishOneShot(id, errs)
	}()
}

func (e *ServerEngine) finishOneShot(id string, errs gqlerror.List) {
	e.sendComplete(id)
	if len(errs) > 0 {
		if e.cfg.OnOperationError != nil {
			e.cfg.OnOperationError(id, errs)
		}
	} else if e.cfg.OnOperationComplete != nil {
		e.cfg.OnOperationComplete(id)
	}
	// One-shot sessions are short-lived by design (§4.3).
	e.messenger.Close()
}

func (e *ServerEngine) startStreaming(id string, req GraphQLRequest) {
	e.mu.Lock()
	if _, exists := e.ops[id]; exists {
		e.mu.Unlock()
		e.fail(ErrSubscriberAlreadyExists(id))
		return
	}
	e.ops[id] = &operationState{}
	e.mu.Unlock()

	go func() {
		subResult, err := e.cfg.Subscriber(context.Background(), req)
		if err != nil {
			e.emitOperationError(id, gqlerror.List{wrapErr(err)})
			e.removeOp(id)
			return
		}
		if subResult.Stream == nil {
			// Resolver misconfiguration: the operation was classified as
			// streaming but the subscriber produced no stream.
			protoErr := ErrInternalAPIStreamIssue()
			errs := subResult.Result.Errors
			if len(errs) == 0 {
				errs = gqlerror.List{{Message: protoErr.humanMessage()}}
			}
			e.emitOperationError(id, errs)
			e.removeOp(id)
			e.fail(protoErr)
			return
		}

		obs := e.observerFor(id)
		sub := subResult.Stream.Subscribe(obs)

		e.mu.Lock()
		if op, ok := e.ops[id]; ok && !op.terminal {
			op.sub = sub
		} else {
			// Completed/canceled before the source finished subscribing.
			e.mu.Unlock()
			sub.Dispose()
			return
		}
		e.mu.Unlock()
	}()
}

func (e *ServerEngine) observerFor(id string) Observer {
	return Observer{
		OnEvent: func(fut EventFuture) {
			result, err := fut(context.Background())
			if err != nil {
				e.emitOperationError(id, gqlerror.List{wrapErr(err)})
				e.removeOp(id)
				return
			}
			if e.isTerminal(id) {
				return
			}
			e.sendNext(id, result)
		},
		OnError: func(err error) {
			if e.isTerminal(id) {
				return
			}
			e.emitOperationError(id, gqlerror.List{wrapErr(err)})
			e.removeOp(id)
		},
		OnCompleted: func() {
			if e.markTerminal(id) {
				return
			}
			e.sendComplete(id)
			if e.cfg.OnOperationComplete != nil {
				e.cfg.OnOperationComplete(id)
			}
			e.removeOp(id)
			if e.cfg.CloseOnSubscriptionComplete {
				e.messenger.Close()
			}
		},
	}
}

func (e *ServerEngine) isTerminal(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	op, ok := e.ops[id]
	return !ok || op.terminal
}

// markTerminal marks id terminal and reports whether it already was.
func (e *ServerEngine) markTerminal(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	op, ok := e.ops[id]
	if !ok || op.terminal {
		return true
	}
	op.terminal = true
	return false
}

func (e *ServerEngine) emitOperationError(id string, errs gqlerror.List) {
	if e.markTerminal(id) {
		return
	}
	e.sendError(id, errs)
	if e.cfg.OnOperationError != nil {
		e.cfg.OnOperationError(id, errs)
	}
}

func (e *ServerEngine) removeOp(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ops, id)
}

func (e *ServerEngine) handleComplete(data []byte) {
	frame, decErr := decodeComplete(data)
	if decErr != nil {
		e.fail(decErr.(*Error))
		return
	}

	e.mu.Lock()
	op, exists := e.ops[frame.ID]
	if exists {
		op.terminal = true
		if op.sub != nil {
			op.sub.Dispose()
		}
		delete(e.ops, frame.ID)
	}
	e.mu.Unlock()

	switch e.cfg.OnClientComplete {
	case ClientCompleteOperationComplete:
		if e.cfg.OnOperationComplete != nil {
			e.cfg.OnOperationComplete(frame.ID)
		}
	default:
		if e.cfg.OnExit != nil {
			e.cfg.OnExit()
		}
	}
}

func (e *ServerEngine) handleNext(data []byte) {
	if !e.requireInitialized() {
		e.fail(ErrNotInitialized())
		return
	}

	frame, decErr := decodeNext(data)
	if decErr != nil {
		e.fail(decErr.(*Error))
		return
	}

	var probe struct {
		Query         string `json:"query"`
		OperationName string `json:"operationName"`
	}
	if len(frame.Payload) > 0 {
		_ = json.Unmarshal(frame.Payload, &probe)
	}
	if probe.Query != "" {
		if kind, clsErr := ClassifyOperation(probe.Query, probe.OperationName); clsErr == nil && kind == OperationStreaming {
			// Reject a DataSync Next whose payload would start a
			// subscription (§4.6): this is a one-off rejection, not tied to
			// any tracked operation, so it bypasses the ops-map terminal
			// gate that guards fan-out-driven errors.
			e.sendError(frame.ID, gqlerror.List{{
				Message: ErrInvalidRequestFormat(string(TypeNext)).humanMessage(),
			}})
			if e.cfg.OnOperationError != nil {
				e.cfg.OnOperationError(frame.ID, nil)
			}
			return
		}
	}

	if e.cfg.OnNext == nil {
		return
	}
	if err := e.cfg.OnNext(context.Background(), *frame, e); err != nil {
		e.emitNextError(frame.ID, err)
	}
}

func (e *ServerEngine) emitNextError(id string, err error) {
	e.sendError(id, gqlerror.List{wrapErr(err)})
	if e.cfg.OnOperationError != nil {
		e.cfg.OnOperationError(id, gqlerror.List{wrapErr(err)})
	}
}

func (e *ServerEngine) sendNext(id string, result Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	wire, err := encodeNext(id, raw)
	if err != nil {
		return
	}
	e.messenger.Send(string(wire))
}

func (e *ServerEngine) sendError(id string, errs gqlerror.List) {
	wire, err := encodeError(id, errs)
	if err != nil {
		return
	}
	e.messenger.Send(string(wire))
}

func (e *ServerEngine) sendComplete(id string) {
	wire, err := encodeComplete(id)
	if err != nil {
		return
	}
	e.messenger.Send(string(wire))
}
