// Package failure defines the error kinds an installation can stop on.
// Every kind is fatal at the point of detection; the installer never retries.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why an installation stopped.
type Kind string

const (
	NotPrivileged           Kind = "NotPrivileged"
	UnsupportedArchitecture Kind = "UnsupportedArchitecture"
	UnsupportedDistribution Kind = "UnsupportedDistribution"
	DataDirectoryMismatch   Kind = "DataDirectoryMismatch"
	AlreadyProvisioned      Kind = "AlreadyProvisioned"
	MissingHostname         Kind = "MissingHostname"
	InvalidHostname         Kind = "InvalidHostname"
	MissingAdminEmail       Kind = "MissingAdminEmail"
	SecretGenerationFailure Kind = "SecretGenerationFailure"
	ExternalToolFailure     Kind = "ExternalToolFailure"
)

// Error carries a Kind plus the operator-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, failure.Of(k)) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Of returns a bare sentinel for errors.Is comparisons.
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf reports the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
