// Package failure defines the structured errors returned by the module
// system. Every failure carries a Kind so callers can decide whether to log
// it, surface it to the end user or abort the enclosing request.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The string value is the wire name.
type Kind string

const (
	InvalidRequirePath Kind = "invalid_require_path"
	CompilationError   Kind = "compilation_error"
	NotFound           Kind = "not_found"
)

// Error is a failure tagged with its Kind.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// New creates a failure of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a failure with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var f *Error
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a failure of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
