// Package protocol implements the graphql-transport-ws wire protocol: frame
// encoding/decoding, the typed error taxonomy, and the server/client peer
// state machines that drive a GraphQL executor/subscriber over an abstract
// Messenger transport.
package protocol

import (
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Type is the wire discriminator carried by every frame's "type" field.
type Type string

const (
	TypeConnectionInit Type = "connection_init"
	TypeConnectionAck  Type = "connection_ack"
	TypeSubscribe      Type = "subscribe"
	TypeNext           Type = "next"
	TypeError          Type = "error"
	TypeComplete       Type = "complete"

	// typeUnknown is the sentinel an unrecognized or missing "type" decodes to.
	// It is never written to the wire.
	typeUnknown Type = "unknown"
)

// wireFrame is the on-the-wire shape shared by every frame variant. Optional
// fields are tagged omitempty so an unset id/payload is never emitted, and
// payload is never emitted as a JSON null when it was unset.
type wireFrame struct {
	ID      string          `json:"id,omitempty"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// envelope is the minimal first-pass decode used to triage a frame's type
// before attempting the variant-specific decode (§4.2).
type envelope struct {
	Type Type `json:"type"`
}

// GraphQLRequest is the payload of a Subscribe frame: a single GraphQL
// request as sent by a client.
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// ConnectionInitFrame is the C->S connection_init frame. Payload is left
// encoded; callers decode it into their own InitPayload shape.
type ConnectionInitFrame struct {
	Payload json.RawMessage
}

// SubscribeFrame is the C->S subscribe frame.
type SubscribeFrame struct {
	ID      string
	Payload GraphQLRequest
}

// CompleteFrame is the C->S (client cancel) or S->C (terminator) complete
// frame; it carries only an operation id.
type CompleteFrame struct {
	ID string
}

// NextFrame carries a GraphQL result tagged by operation id. It is used both
// S->C (subscription/one-shot results) and, under the DataSync extension,
// C->S (client-pushed pre-computed results).
type NextFrame struct {
	ID      string
	Payload json.RawMessage
}

// ConnectionAckFrame is the S->C connection_ack frame.
type ConnectionAckFrame struct {
	Payload map[string]interface{}
}

// ErrorFrame is the S->C error frame. Payload order is preserved exactly as
// produced by the executor/subscriber/protocol layer.
type ErrorFrame struct {
	ID      string
	Payload gqlerror.List
}

// decodeEnvelope performs the first decode pass: just enough to discover the
// frame's type. A missing "type" key or malformed JSON is reported as
// ErrNoType; an unrecognized type decodes to typeUnknown without itself being
// an error (the caller maps that to ErrInvalidType).
func decodeEnvelope(data []byte) (Type, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return typeUnknown, ErrNoType()
	}
	if env.Type == "" {
		return typeUnknown, ErrNoType()
	}
	switch env.Type {
	case TypeConnectionInit, TypeSubscribe, TypeComplete, TypeNext,
		TypeConnectionAck, TypeError:
		return env.Type, nil
	default:
		return typeUnknown, nil
	}
}

func decodeConnectionInit(data []byte) (*ConnectionInitFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrInvalidRequestFormat(string(TypeConnectionInit))
	}
	return &ConnectionInitFrame{Payload: w.Payload}, nil
}

func decodeSubscribe(data []byte) (*SubscribeFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrInvalidRequestFormat(string(TypeSubscribe))
	}
	var req GraphQLRequest
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, &req); err != nil {
			return nil, ErrInvalidRequestFormat(string(TypeSubscribe))
		}
	}
	return &SubscribeFrame{ID: w.ID, Payload: req}, nil
}

func decodeComplete(data []byte) (*CompleteFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrInvalidRequestFormat(string(TypeComplete))
	}
	return &CompleteFrame{ID: w.ID}, nil
}

func decodeNext(data []byte) (*NextFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrInvalidRequestFormat(string(TypeNext))
	}
	return &NextFrame{ID: w.ID, Payload: w.Payload}, nil
}

func decodeConnectionAck(data []byte) (*ConnectionAckFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrInvalidResponseFormat(string(TypeConnectionAck))
	}
	var payload map[string]interface{}
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, &payload); err != nil {
			return nil, ErrInvalidResponseFormat(string(TypeConnectionAck))
		}
	}
	return &ConnectionAckFrame{Payload: payload}, nil
}

func decodeError(data []byte) (*ErrorFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrInvalidResponseFormat(string(TypeError))
	}
	var errs gqlerror.List
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, &errs); err != nil {
			return nil, ErrInvalidResponseFormat(string(TypeError))
		}
	}
	return &ErrorFrame{ID: w.ID, Payload: errs}, nil
}

func encodeFrame(id string, typ Type, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(wireFrame{ID: id, Type: typ, Payload: payload})
}

func encodeConnectionAck(f *ConnectionAckFrame) ([]byte, error) {
	var payload json.RawMessage
	if f != nil && f.Payload != nil {
		raw, err := json.Marshal(f.Payload)
		if err != nil {
			return nil, err
		}
		payload = raw
	}
	return encodeFrame("", TypeConnectionAck, payload)
}

func encodeConnectionInit(f *ConnectionInitFrame) ([]byte, error) {
	return encodeFrame("", TypeConnectionInit, f.Payload)
}

func encodeSubscribe(f *SubscribeFrame) ([]byte, error) {
	raw, err := json.Marshal(f.Payload)
	if err != nil {
		return nil, err
	}
	return encodeFrame(f.ID, TypeSubscribe, raw)
}

func encodeComplete(id string) ([]byte, error) {
	return encodeFrame(id, TypeComplete, nil)
}

func encodeNext(id string, payload json.RawMessage) ([]byte, error) {
	return encodeFrame(id, TypeNext, payload)
}

func encodeError(id string, errs gqlerror.List) ([]byte, error) {
	if errs == nil {
		errs = gqlerror.List{}
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return nil, err
	}
	return encodeFrame(id, TypeError, raw)
}
