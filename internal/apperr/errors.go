// Package apperr defines the error kinds surfaced to callers of the core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	KindRemoteTransport Kind = iota
	KindAuthenticationRequired
	KindNotFound
	KindValidation
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationRequired:
		return "authentication required"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation error"
	case KindPermissionDenied:
		return "permission denied"
	default:
		return "remote transport error"
	}
}

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrRemoteTransport        = &Error{Kind: KindRemoteTransport}
	ErrPermissionDenied       = &Error{Kind: KindPermissionDenied}
)

// Error is a typed error carrying a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can match against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AuthenticationRequired builds an error for an operation without a resolvable session.
func AuthenticationRequired(op string, cause error) *Error {
	return &Error{Kind: KindAuthenticationRequired, Op: op, Message: "user not authenticated", Err: cause}
}

// NotFound builds an error for a missing list or product.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation builds an error for rejected input.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied builds an error for a role lacking a capability.
func PermissionDenied(op, format string, args ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Transport wraps a store or network failure, keeping the cause.
func Transport(op string, cause error) *Error {
	return &Error{Kind: KindRemoteTransport, Op: op, Message: "remote store request failed", Err: cause}
}

// KindOf returns the kind of err, defaulting to KindRemoteTransport for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemoteTransport
}

// PartialDeleteError reports a cascading list delete that stopped part way.
// The list is left in place and Orphaned holds the product ids that could not be removed.
type PartialDeleteError struct {
	ListID   string
	Deleted  []string
	Orphaned []string
	Err      error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("delete list %s: removed %d products, %d left orphaned: %v",
		e.ListID, len(e.Deleted), len(e.Orphaned), e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }
