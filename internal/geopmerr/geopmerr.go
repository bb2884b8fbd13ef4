// Package geopmerr defines the error-kind taxonomy shared by every
// component of the control core, replacing the exception-based control
// flow of the source implementation with typed result values.
package geopmerr

import "fmt"

// Kind classifies a control-core error so the controller loop can
// decide whether to abort, skip a tick, or log and continue.
type Kind int

const (
	// Invalid means the caller passed a bad domain, wrong vector
	// length, or unknown name. Fatal at init; skip-and-log mid-tick.
	Invalid Kind = iota
	// NotSupported means the platform is missing a required signal
	// or control. Always fatal at init; never raised mid-tick.
	NotSupported
	// Ordering means an operation was invoked out of sequence, e.g.
	// sample() before any read_batch(), or send on an unowned level.
	// Indicates a bug; abort.
	Ordering
	// LevelRange means a tree-communicator level index was out of
	// bounds. Indicates a bug; abort.
	LevelRange
	// Platform means a transient I/O failure reading or writing a
	// register. Swallowed and counted; never aborts the run.
	Platform
	// AgentReject means an agent's ValidatePolicy rejected a policy.
	// The caller should fall back to the last validated policy.
	AgentReject
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotSupported:
		return "not-supported"
	case Ordering:
		return "ordering"
	case LevelRange:
		return "level-range"
	case Platform:
		return "platform"
	case AgentReject:
		return "agent-reject"
	default:
		return "unknown"
	}
}

// Error is the typed error carried through the control core. It wraps
// an optional cause and always reports a stable Kind so callers can
// branch on failure category without parsing strings.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from err if it is (or wraps) a *Error,
// returning ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var ge *Error
	if e, ok := err.(*Error); ok {
		ge = e
	} else if ok := asError(err, &ge); !ok {
		return 0, false
	}
	if ge == nil {
		return 0, false
	}
	return ge.kind, true
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsFatal reports whether an error of this kind should abort the
// controller loop entirely rather than being logged and skipped.
func (k Kind) IsFatal() bool {
	switch k {
	case Ordering, LevelRange:
		return true
	default:
		return false
	}
}
