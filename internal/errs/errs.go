// Package errs defines the error kinds surfaced by the fragment storage core.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the categories the core distinguishes.
type Kind int

const (
	// Invalid covers malformed ranges, out-of-bounds coordinates, NaN, unknown
	// column names, and invalid footer versions.
	Invalid Kind = iota
	// NotLoaded is returned when an accessor is called before its section's
	// load_* has succeeded.
	NotLoaded
	// NotApplicable is returned when a statistic is requested that the
	// column's type does not maintain.
	NotApplicable
	// OutOfMemory is returned when the memory tracker refuses a reservation.
	OutOfMemory
	// Io wraps an underlying VFS failure.
	Io
	// Corrupt covers on-disk data that violates a structural invariant.
	Corrupt
	// Unsupported is returned when writing a format version below the
	// supported floor.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotLoaded:
		return "not_loaded"
	case NotApplicable:
		return "not_applicable"
	case OutOfMemory:
		return "out_of_memory"
	case Io:
		return "io"
	case Corrupt:
		return "corrupt"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the core. It carries a Kind so
// callers can branch with errors.As, plus an optional set of details (e.g.
// OutOfMemory's requested/available byte counts).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.OutOfMemory) style checks against a bare Kind
// wrapped in a sentinel Error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under the given kind.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches a details map and returns the same *Error for chaining.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// OutOfMemoryError builds the OutOfMemory error shape carrying requested vs
// available bytes, as required by spec scenario F.
func OutOfMemoryError(category string, requested, available int64) *Error {
	return Newf(OutOfMemory, "memory tracker denied reservation for %s", category).
		WithDetails(map[string]interface{}{
			"category":  category,
			"requested": requested,
			"available": available,
		})
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinel kind markers usable with errors.Is(err, errs.KindInvalid) etc.
var (
	KindInvalid       = &Error{Kind: Invalid}
	KindNotLoaded     = &Error{Kind: NotLoaded}
	KindNotApplicable = &Error{Kind: NotApplicable}
	KindOutOfMemory   = &Error{Kind: OutOfMemory}
	KindIo            = &Error{Kind: Io}
	KindCorrupt       = &Error{Kind: Corrupt}
	KindUnsupported   = &Error{Kind: Unsupported}
)
