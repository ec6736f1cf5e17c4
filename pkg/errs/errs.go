// Package errs implements the error taxonomy surfaced by every
// component boundary in the orchestrator: a small set of named kinds
// that callers (the CLI, the reconciler's per-spec/per-host loops)
// switch on to decide whether to retry, log, or report to the user.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the named error categories from the error handling
// design.
type Kind string

const (
	// InvalidArg: bad spec, bad id, malformed YAML. Surfaced to the
	// CLI; never retried.
	InvalidArg Kind = "InvalidArg"
	// NotFound: missing host/daemon/spec. Idempotent removes return
	// success with an informational message instead of this kind.
	NotFound Kind = "NotFound"
	// HostUnreachable: connection/SSH failure. The host is marked
	// offline; the loop retries on the next pass.
	HostUnreachable Kind = "HostUnreachable"
	// AgentError: non-zero exit from the agent. Reported on the
	// daemon's event log; not fatal to the loop.
	AgentError Kind = "AgentError"
	// NotSafeToStop: a driver vetoed stopping a daemon set.
	NotSafeToStop Kind = "NotSafeToStop"
	// MigrationPending: a schema migration has not finished.
	MigrationPending Kind = "MigrationPending"
	// Internal: unexpected/bug. Logged; never aborts the loop.
	Internal Kind = "Internal"
	// AlreadyExists: duplicate add (hosts, mostly).
	AlreadyExists Kind = "AlreadyExists"
)

// Error is a typed orchestrator error carrying a Kind alongside the
// usual wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause as an *Error of the given kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind, walking the chain via
// errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Internal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
