// Package flogerr defines the five-bucket error taxonomy this library
// sorts every failure into, grounded on the teacher's pkg/errors.AppError
// (component/operation/cause shape), generalized from the teacher's
// open-ended severity string to the fixed taxonomy spec §7 names.
package flogerr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the five buckets an error belongs to.
type Kind int

const (
	// Config marks invalid paths, unreachable directories, or
	// out-of-range parameters. Surfaced at transport construction;
	// construction fails outright.
	Config Kind = iota
	// Transient marks recoverable I/O failures — SQLite busy, a
	// write that can be retried, a timed-out network call. The
	// affected chunk is reported failed; events retry or discard per
	// the transport's own policy.
	Transient
	// Permanent marks unrecoverable I/O conditions — disk full,
	// permission denied. The sink marks itself degraded but keeps
	// accepting records.
	Permanent
	// Data marks a malformed event on deserialize or an object that
	// can't be serialized. Dropped with a delegate callback; never
	// propagates.
	Data
	// Programmer marks an invariant violation. Fatal by convention;
	// callers that detect one should panic rather than construct
	// this and return it.
	Programmer
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case Data:
		return "data"
	case Programmer:
		return "programmer"
	default:
		return "unknown"
	}
}

// Error is the standardized error shape every package in this library
// wraps failures in before handing them to a delegate or returning them
// from a constructor. Component and Operation mirror the teacher's
// AppError fields; Kind replaces its open-ended Severity with the fixed
// taxonomy spec §7 specifies.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
}

// New builds an Error with no cause.
func New(kind Kind, component, operation, message string) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, component, operation string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: cause.Error(), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a Kind sentinel matching e's Kind, so
// callers can write errors.Is(err, flogerr.TransientError) instead of a type
// assertion plus a field check.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && k.kind == e.Kind
}

type kindSentinel struct{ kind Kind }

func (kindSentinel) Error() string { return "" }

// These sentinels let callers write errors.Is(err, flogerr.TransientError)
// etc. by giving each Kind value an error identity through the
// package-level vars below.
var (
	ConfigError     error = kindSentinel{kind: Config}
	TransientError  error = kindSentinel{kind: Transient}
	PermanentError  error = kindSentinel{kind: Permanent}
	DataError       error = kindSentinel{kind: Data}
	ProgrammerError error = kindSentinel{kind: Programmer}
)

// Of reports the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
