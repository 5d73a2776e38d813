// internal/domain/event/errors.go

package event

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the user
type ErrorKind string

const (
	KindConfigMissing        ErrorKind = "config_missing"
	KindRetrievalFailed      ErrorKind = "retrieval_failed"
	KindTimeout              ErrorKind = "timeout"
	KindMalformedResponse    ErrorKind = "malformed_response"
	KindInvalidEventGeometry ErrorKind = "invalid_event_geometry"
	KindMissingInterests     ErrorKind = "missing_interests"
	KindSuperseded           ErrorKind = "superseded"
)

// Error carries a kind, the failing operation and the underlying cause
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrConfigMissing     = &Error{Kind: KindConfigMissing}
	ErrRetrievalFailed   = &Error{Kind: KindRetrievalFailed}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrInvalidGeometry   = &Error{Kind: KindInvalidEventGeometry}
	ErrMissingInterests  = &Error{Kind: KindMissingInterests}
	ErrSuperseded        = &Error{Kind: KindSuperseded}
)

// Validation errors for criteria edits
var (
	ErrTooManyInterests = fmt.Errorf("at most %d interests are allowed", MaxInterests)
	ErrInvalidDateRange = errors.New("invalid date range")
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
