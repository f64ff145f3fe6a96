// Package failure is the error taxonomy shared by use cases and transports.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindExternal   Kind = "external"
	KindNotFound   Kind = "not_found"
)

// Error carries a machine-readable Reason next to the human message.
// Sentinels are compared by identity, so wrap them with %w or Wrap.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets a wrapped copy match its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

func Validation(reason, msg string) *Error { return &Error{Kind: KindValidation, Reason: reason, Message: msg} }
func Conflict(reason, msg string) *Error   { return &Error{Kind: KindConflict, Reason: reason, Message: msg} }
func NotFound(reason, msg string) *Error   { return &Error{Kind: KindNotFound, Reason: reason, Message: msg} }

// External marks a failed call to the ledger or the metadata service. Callers may retry.
func External(reason string, err error) *Error {
	return &Error{Kind: KindExternal, Reason: reason, Message: "external dependency failed", Err: err}
}

// Wrap returns a copy of sentinel with extra detail appended to the message.
func Wrap(sentinel *Error, format string, args ...any) *Error {
	cp := *sentinel
	cp.Message = sentinel.Message + ": " + fmt.Sprintf(format, args...)
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or "" for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func Retryable(err error) bool { return KindOf(err) == KindExternal }
