package protocol

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// wrapErr lifts a plain Go error into a single-element GraphQL error,
// preserving its message as-is (no stack trace, no extensions).
func wrapErr(err error) *gqlerror.Error {
	return &gqlerror.Error{Message: err.Error()}
}

// Close codes a protocol fault may carry to the peer (§6).
const (
	CloseInvalidMessage           = 4400
	CloseUnauthorized             = 4401
	CloseSubscriberAlreadyExists  = 4409
	CloseTooManyInitializations   = 4429
	CloseInternalStreamError      = 4500
)

// ErrorKind distinguishes the members of the closure-code-bearing protocol
// error taxonomy (§7). It is distinct from gqlerror.Error, which carries
// per-operation GraphQL execution errors and is never fatal to the session.
type ErrorKind string

const (
	KindNoType                  ErrorKind = "NoType"
	KindInvalidType              ErrorKind = "InvalidType"
	KindInvalidRequestFormat     ErrorKind = "InvalidRequestFormat"
	KindInvalidResponseFormat    ErrorKind = "InvalidResponseFormat"
	KindInvalidEncoding          ErrorKind = "InvalidEncoding"
	KindUnauthorized             ErrorKind = "Unauthorized"
	KindNotInitialized           ErrorKind = "NotInitialized"
	KindTooManyInitializations   ErrorKind = "TooManyInitializations"
	KindSubscriberAlreadyExists  ErrorKind = "SubscriberAlreadyExists"
	KindInternalAPIStreamIssue   ErrorKind = "InternalAPIStreamIssue"
	KindGraphQLError             ErrorKind = "GraphQLError"
)

// Error is a protocol-framing fault: always close-code-bearing, always
// fatal to the session. It is reported to the peer via Messenger.Error,
// never as a Next/Error frame.
type Error struct {
	Kind      ErrorKind
	CloseCode int
	// Detail carries the offending "type" string for InvalidRequestFormat /
	// InvalidResponseFormat, or the offending operation id for
	// SubscriberAlreadyExists. Empty otherwise.
	Detail string
	// Cause is set when this Error wraps a host-supplied error (KindGraphQLError).
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.CloseCode, e.humanMessage())
}

// WireMessage is the exact text passed to Messenger.Error: a close code
// prefix followed by a human-readable diagnostic (§6, §7).
func (e *Error) WireMessage() string {
	return e.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) humanMessage() string {
	switch e.Kind {
	case KindNoType:
		return "No type specified"
	case KindInvalidType:
		return "Invalid type"
	case KindInvalidRequestFormat:
		return fmt.Sprintf("Invalid request format for type %q", e.Detail)
	case KindInvalidResponseFormat:
		return fmt.Sprintf("Invalid response format for type %q", e.Detail)
	case KindInvalidEncoding:
		return "Invalid encoding"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotInitialized:
		return "Not initialized"
	case KindTooManyInitializations:
		return "Too many initialization requests"
	case KindSubscriberAlreadyExists:
		return fmt.Sprintf("Subscriber for %q already exists", e.Detail)
	case KindInternalAPIStreamIssue:
		return "Internal error: non-stream response for streaming operation"
	case KindGraphQLError:
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return "GraphQL error"
	default:
		return "Unknown protocol error"
	}
}

func ErrNoType() *Error {
	return &Error{Kind: KindNoType, CloseCode: CloseInvalidMessage}
}

func ErrInvalidType() *Error {
	return &Error{Kind: KindInvalidType, CloseCode: CloseInvalidMessage}
}

func ErrInvalidRequestFormat(typ string) *Error {
	return &Error{Kind: KindInvalidRequestFormat, CloseCode: CloseInvalidMessage, Detail: typ}
}

func ErrInvalidResponseFormat(typ string) *Error {
	return &Error{Kind: KindInvalidResponseFormat, CloseCode: CloseInvalidMessage, Detail: typ}
}

func ErrInvalidEncoding() *Error {
	return &Error{Kind: KindInvalidEncoding, CloseCode: CloseInvalidMessage}
}

func ErrUnauthorized() *Error {
	return &Error{Kind: KindUnauthorized, CloseCode: CloseUnauthorized}
}

func ErrNotInitialized() *Error {
	return &Error{Kind: KindNotInitialized, CloseCode: CloseUnauthorized}
}

func ErrTooManyInitializations() *Error {
	return &Error{Kind: KindTooManyInitializations, CloseCode: CloseTooManyInitializations}
}

func ErrSubscriberAlreadyExists(id string) *Error {
	return &Error{Kind: KindSubscriberAlreadyExists, CloseCode: CloseSubscriberAlreadyExists, Detail: id}
}

func ErrInternalAPIStreamIssue() *Error {
	return &Error{Kind: KindInternalAPIStreamIssue, CloseCode: CloseInternalStreamError}
}

// asResponseFormatError remaps a decode error produced by a direction-agnostic
// decoder (decodeNext, decodeComplete) from InvalidRequestFormat to
// InvalidResponseFormat, for use on the client engine's S->C decode path.
func asResponseFormatError(err error) *Error {
	protoErr, ok := err.(*Error)
	if !ok {
		return ErrInvalidEncoding()
	}
	if protoErr.Kind == KindInvalidRequestFormat {
		return ErrInvalidResponseFormat(protoErr.Detail)
	}
	return protoErr
}

// WrapGraphQLError wraps a host-supplied error for forwarding with a numeric
// close code (used when the host itself needs to force a fatal close, e.g. a
// client-side observable source failing under DataSync §4.4).
func WrapGraphQLError(cause error, closeCode int) *Error {
	return &Error{Kind: KindGraphQLError, CloseCode: closeCode, Cause: cause}
}
