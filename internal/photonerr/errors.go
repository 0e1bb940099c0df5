// Package photonerr defines the error taxonomy shared by every runtime
// component. Components construct errors through New/Newf so the protocol
// core can map a Kind to a JSON-RPC error code or a tools/call isError
// result uniformly, per spec section 7.
package photonerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the protocol-visible error categories named in the
// specification's error handling design.
type Kind string

const (
	// NotFound means a tool/resource/prompt name is not in the current catalog.
	NotFound Kind = "NotFound"
	// InvalidArguments means tool arguments failed schema validation.
	InvalidArguments Kind = "InvalidArguments"
	// NotConfigured means a tool was invoked on a photon missing required configuration.
	NotConfigured Kind = "NotConfigured"
	// Cancelled means an invocation was cancelled by client, disconnect, or timeout.
	Cancelled Kind = "Cancelled"
	// LoadError means an analyzer/compile/instantiate failure occurred during load or reload.
	LoadError Kind = "LoadError"
	// IntegrityError means a fetched source's hash disagreed with the manifest claim.
	IntegrityError Kind = "IntegrityError"
	// UpstreamUnavailable means a marketplace source could not be reached.
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	// ElicitationNotSupported means the client did not advertise elicitation capability.
	ElicitationNotSupported Kind = "ElicitationNotSupported"
	// Internal means an unexpected failure. An Error can carry a correlation
	// id (WithCorrelationID), but no runtime component sets one or logs
	// Internal errors in one place.
	Internal Kind = "Internal"
)

// Error is the concrete error type every component returns. Detail carries
// structured, kind-specific context: the offending property path for
// InvalidArguments, the missing variable names for NotConfigured, the
// conflicting source names for a marketplace conflict, and so on.
type Error struct {
	Kind    Kind
	Message string
	Detail  any
	id      string // stable correlation id, set only for Internal errors
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, so errors.Is/As keep working.
func (e *Error) Unwrap() error { return e.wrapped }

// CorrelationID returns the stable identifier attached to Internal errors,
// or the empty string for other kinds.
func (e *Error) CorrelationID() string { return e.id }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, wrapped: cause}
}

// Wrapf constructs an Error of the given kind that wraps cause, with a
// formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: cause}
}

// WithDetail attaches structured detail and returns the same Error for chaining.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// WithCorrelationID attaches a stable correlation id, used for Internal errors
// so operators can grep logs for the identifier a client was shown.
func (e *Error) WithCorrelationID(id string) *Error {
	e.id = id
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal when err is not
// (or does not wrap) a *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
