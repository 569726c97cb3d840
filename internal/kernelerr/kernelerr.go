// Package kernelerr defines the structured error kinds of spec.md §7.
//
// The core itself never returns these as the primary failure signal (it
// returns a sentinel address/status and logs a diagnostic, per spec.md's
// "never unwinds" contract); *Error exists so a caller that wants more than
// a log line can recover structured detail via errors.As, in the same spirit
// as the teacher's eventloop.TypeError/RangeError/TimeoutError: a small
// struct carrying a Kind plus an optional Cause, rather than a sentinel
// package-level error value per kind.
package kernelerr

import "fmt"

// Kind enumerates the fallible conditions named in spec.md §7.
type Kind int

const (
	OutOfMemory Kind = iota
	InvalidAddress
	DoubleFree
	StackExhausted
	TableFull
	UnknownProcess
	MailboxFull
	NoMessage
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case InvalidAddress:
		return "invalid address"
	case DoubleFree:
		return "double free"
	case StackExhausted:
		return "stack exhausted"
	case TableFull:
		return "process table full"
	case UnknownProcess:
		return "unknown process"
	case MailboxFull:
		return "mailbox full"
	case NoMessage:
		return "no message"
	default:
		return "unknown kernel error"
	}
}

// Error wraps a Kind with an optional message and cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap enables errors.Is/errors.As through the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error of the same Kind, so callers can
// write errors.Is(err, kernelerr.New(kernelerr.DoubleFree, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
