package types

import (
	"errors"
	"fmt"
)

// ErrorClass is the behavioral error taxonomy every operation in the bus
// surfaces through. Callers branch on the class, never on error identity,
// since a single class may be produced from more than one call site.
type ErrorClass int

const (
	// ClassNotConnected: the operation requires an activated peer, but
	// Active is still new.
	ClassNotConnected ErrorClass = iota

	// ClassShuttingDown: Active is deactivated; acquire failed.
	ClassShuttingDown

	// ClassInvalid: malformed parameters, e.g. a staging timestamp that
	// isn't odd where the protocol requires it.
	ClassInvalid

	// ClassInterrupted: a blocking wait was cancelled; the caller may retry.
	ClassInterrupted

	// ClassTransient: an allocation or transient resource failure; the
	// caller may retry.
	ClassTransient

	// ClassFatal: an internal invariant violation, surfaced and logged.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNotConnected:
		return "not-connected"
	case ClassShuttingDown:
		return "shutting-down"
	case ClassInvalid:
		return "invalid"
	case ClassInterrupted:
		return "interrupted"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// BusError wraps an underlying error with its behavioral class, so callers
// can use errors.Is/errors.As against the class sentinel instead of string
// matching the message.
type BusError struct {
	Class ErrorClass
	Err   error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *BusError with the same class, letting
// errors.Is(err, NotConnected) work as a class check.
func (e *BusError) Is(target error) bool {
	var other *BusError
	if errors.As(target, &other) {
		return other.Class == e.Class
	}
	return false
}

func newClassError(class ErrorClass, err error) *BusError {
	return &BusError{Class: class, Err: err}
}

var (
	// NotConnected is the class sentinel: errors.Is(err, NotConnected).
	NotConnected = newClassError(ClassNotConnected, errors.New("peer not connected"))
	// ShuttingDown is the class sentinel for acquire-after-deactivate.
	ShuttingDown = newClassError(ClassShuttingDown, errors.New("peer shutting down"))
	// Invalid is the class sentinel for malformed parameters.
	Invalid = newClassError(ClassInvalid, errors.New("invalid parameter"))
	// Interrupted is the class sentinel for a cancelled wait.
	Interrupted = newClassError(ClassInterrupted, errors.New("wait interrupted"))
	// Transient is the class sentinel for a retryable resource failure.
	Transient = newClassError(ClassTransient, errors.New("transient failure"))
	// Fatal is the class sentinel for an internal invariant violation.
	Fatal = newClassError(ClassFatal, errors.New("internal invariant violation"))
)

// WrapNotConnected, WrapShuttingDown, etc build a BusError of the matching
// class around a more specific message, keeping errors.Is(err, NotConnected)
// true while giving a useful Error() string.
func WrapNotConnected(err error) error { return newClassError(ClassNotConnected, err) }
func WrapShuttingDown(err error) error { return newClassError(ClassShuttingDown, err) }
func WrapInvalid(err error) error      { return newClassError(ClassInvalid, err) }
func WrapInterrupted(err error) error  { return newClassError(ClassInterrupted, err) }
func WrapTransient(err error) error    { return newClassError(ClassTransient, err) }
func WrapFatal(err error) error        { return newClassError(ClassFatal, err) }

// ErrCommandUnknown reports an unrecognized Content.Operation. The
// delivery path does not inspect Operation, so no code in the core
// returns it.
var ErrCommandUnknown = errors.New("unknown command applied into state machine")
