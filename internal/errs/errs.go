// Package errs defines the error taxonomy shared across the core: transient
// I/O, plugin failure/timeout, config errors, privilege denial, and log
// corruption. Handlers branch on Kind rather than on error strings.
package errs

import "github.com/pkg/errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindTransientIO
	KindPluginFailure
	KindPluginTimeout
	KindConfigLoad
	KindConfigReplicate
	KindPrivilegeDenied
	KindLogCorruption
)

func (k Kind) String() string {
	switch k {
	case KindTransientIO:
		return "transient_io"
	case KindPluginFailure:
		return "plugin_failure"
	case KindPluginTimeout:
		return "plugin_timeout"
	case KindConfigLoad:
		return "config_load"
	case KindConfigReplicate:
		return "config_replicate"
	case KindPrivilegeDenied:
		return "privilege_denied"
	case KindLogCorruption:
		return "log_corruption"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a taxonomy Kind, so subsystem
// boundaries can log-and-absorb by Kind instead of matching strings.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// New wraps cause with a Kind. Panics on nil cause are not special-cased;
// callers always have a concrete error when classifying a failure.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

// Wrapf builds a Kind error with a formatted message layered over cause.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
