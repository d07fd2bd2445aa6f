package domain

import (
	"errors"
	"fmt"
)

// Kind identifies an error class in the external contract. Errors are
// surfaced to callers as {kind, message} objects, never raw panics.
type Kind string

const (
	KindIngest       Kind = "ingest_error"
	KindEmptyQuery   Kind = "empty_query"
	KindTimeout      Kind = "retrieval_timeout"
	KindCollaborator Kind = "collaborator_unavailable"
	KindInternal     Kind = "internal"
)

// Sentinel errors for pipeline entry validation.
var (
	ErrDuplicateDocument = errors.New("document id already ingested")
	ErrUnknownDocument   = errors.New("unknown document id")
	ErrEmptyPage         = errors.New("page has no extractable text")
	ErrEmptyDocumentID   = errors.New("document id is empty")
	ErrNoPages           = errors.New("document has no pages")
	ErrEmptyQuery        = errors.New("query is empty")
)

// Error wraps a cause with its contract kind.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// E creates a kinded Error.
func E(kind Kind, message string, wrapped error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: wrapped}
}

// KindOf reports the contract kind for err, defaulting to internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return KindEmptyQuery
	case errors.Is(err, ErrDuplicateDocument),
		errors.Is(err, ErrUnknownDocument),
		errors.Is(err, ErrEmptyPage),
		errors.Is(err, ErrEmptyDocumentID),
		errors.Is(err, ErrNoPages):
		return KindIngest
	default:
		return KindInternal
	}
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Wrapped != nil {
			return fmt.Sprintf("%s: %v", de.Message, de.Wrapped)
		}
		return de.Message
	}
	return err.Error()
}
