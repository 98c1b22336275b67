package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies failures surfaced by the chat pipeline
type ErrorKind string

const (
	KindQuotaExceeded         ErrorKind = "quota_exceeded"
	KindRetrievalUnavailable  ErrorKind = "retrieval_unavailable"
	KindGenerationUnavailable ErrorKind = "generation_unavailable"
	KindPersistenceFailed     ErrorKind = "persistence_failed"
	KindInvalidCreator        ErrorKind = "invalid_creator"
	KindAdmissionUnavailable  ErrorKind = "admission_unavailable"
	KindOverloaded            ErrorKind = "overloaded"
	KindBadRequest            ErrorKind = "bad_request"
	KindNotFound              ErrorKind = "not_found"
	KindForbidden             ErrorKind = "forbidden"
)

// Sentinel errors usable with errors.Is against any *ChatError of the same kind
var (
	ErrQuotaExceeded         = &ChatError{Kind: KindQuotaExceeded, Message: "quota exceeded"}
	ErrRetrievalUnavailable  = &ChatError{Kind: KindRetrievalUnavailable, Message: "retrieval unavailable"}
	ErrGenerationUnavailable = &ChatError{Kind: KindGenerationUnavailable, Message: "generation unavailable"}
	ErrPersistenceFailed     = &ChatError{Kind: KindPersistenceFailed, Message: "persistence failed"}
	ErrInvalidCreator        = &ChatError{Kind: KindInvalidCreator, Message: "invalid creator"}
	ErrAdmissionUnavailable  = &ChatError{Kind: KindAdmissionUnavailable, Message: "admission unavailable"}
	ErrOverloaded            = &ChatError{Kind: KindOverloaded, Message: "server overloaded"}
	ErrBadRequest            = &ChatError{Kind: KindBadRequest, Message: "bad request"}
	ErrNotFound              = &ChatError{Kind: KindNotFound, Message: "not found"}
	ErrForbidden             = &ChatError{Kind: KindForbidden, Message: "access denied"}
)

// ChatError carries a kind and, for quota rejections, a retry hint
type ChatError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.Cause
}

// Is matches any ChatError with the same kind
func (e *ChatError) Is(target error) bool {
	var other *ChatError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// HTTPStatus maps the kind to the status code returned at the HTTP boundary
func (e *ChatError) HTTPStatus() int {
	switch e.Kind {
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindInvalidCreator, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindGenerationUnavailable, KindAdmissionUnavailable, KindOverloaded, KindRetrievalUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newChatError(kind ErrorKind, cause error, format string, args ...interface{}) *ChatError {
	return &ChatError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind of err, or "" when err is not a ChatError
func KindOf(err error) ErrorKind {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
