// Package errs defines the error taxonomy shared by the budget engine.
//
// Every failure a caller can act on is one of five kinds. Validation,
// Authorization, NotFound and Conflict are recoverable and carry enough
// detail to correct the request. Consistency signals a broken internal
// invariant: it must be logged and surfaced, never swallowed or retried.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	// Validation is malformed or out-of-range input.
	Validation Kind = iota + 1
	// Authorization is a denied permission.
	Authorization
	// NotFound is a missing budget or expense.
	NotFound
	// Conflict is a duplicate creation or a lost optimistic-write race.
	Conflict
	// Consistency is a violated internal invariant, i.e. a defect.
	Consistency
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Consistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Error is the engine's structured error. Field names the offending input
// field or rule when one applies.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a Validation error for the given field.
func Validationf(field, format string, args ...any) *Error {
	return &Error{Kind: Validation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Authorizationf builds an Authorization error.
func Authorizationf(format string, args ...any) *Error {
	return &Error{Kind: Authorization, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

// Consistencyf builds a Consistency error.
func Consistencyf(format string, args ...any) *Error {
	return &Error{Kind: Consistency, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to e and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the Kind of err, or 0 if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is an engine error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
