package gantry

import (
	"errors"
	"net/http"
	"time"
)

// Kind is the closed classification of pipeline rejections.
// Every rejection returned to a caller carries exactly one Kind.
type Kind string

const (
	// KindValidation indicates the payload failed schema validation (400).
	KindValidation Kind = "validation_error"

	// KindUnauthorized indicates a missing or unresolvable identity (401).
	KindUnauthorized Kind = "unauthorized"

	// KindForbidden indicates a resolved identity without sufficient privilege (403).
	KindForbidden Kind = "forbidden"

	// KindNotFound indicates the requested resource does not exist (404).
	KindNotFound Kind = "not_found"

	// KindRateLimited indicates the caller exceeded their attempt budget (429).
	KindRateLimited Kind = "rate_limited"

	// KindInternal indicates an unexpected failure. The caller-safe message
	// is always generic; the cause is never serialized (500).
	KindInternal Kind = "internal_error"
)

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors for pipeline rejections.
// When a step or handler returns one of these, the pipeline stops and the
// rejection is classified with the matching Kind and its declared safe message.

var (
	// ErrUnauthorized indicates missing or invalid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks the required privilege.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the caller exceeded their attempt budget.
	ErrRateLimited = errors.New("too many requests")
)

// internalSafeMessage is the only message KindInternal ever exposes.
const internalSafeMessage = "an unexpected error occurred"

// Error is a classified pipeline rejection. It pairs a stable Kind with a
// caller-safe message. The internal cause is retained for observability but
// never reaches the safe message.
type Error struct {
	Kind        Kind
	SafeMessage string
	RetryAfter  time.Duration // Positive only for KindRateLimited.

	cause error
}

// Error implements the error interface. It returns the safe message only,
// so accidental formatting of a classified error leaks nothing.
func (e *Error) Error() string {
	return e.SafeMessage
}

// Unwrap exposes the internal cause for errors.Is/errors.As inspection.
func (e *Error) Unwrap() error {
	return e.cause
}

// Reject builds a classified rejection with the given kind and safe message.
func Reject(kind Kind, safeMessage string) *Error {
	return &Error{Kind: kind, SafeMessage: safeMessage}
}

// Classify maps any error raised during pipeline execution to a classified
// rejection. Recognized kinds pass through with their safe message preserved
// verbatim; classifying an already-classified error is idempotent. Everything
// else collapses one-way to KindInternal with a generic safe message. The
// classifier never inspects an unrecognized error's text to infer a more
// specific kind.
func Classify(err error) *Error {
	// Already classified: pass through unchanged.
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	// Structured validation failures keep their field list.
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &Error{
			Kind:        KindValidation,
			SafeMessage: verr.Error(),
			cause:       verr,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return &Error{Kind: KindUnauthorized, SafeMessage: ErrUnauthorized.Error(), cause: err}
	case errors.Is(err, ErrSignatureInvalid):
		return &Error{Kind: KindUnauthorized, SafeMessage: ErrSignatureInvalid.Error(), cause: err}
	case errors.Is(err, ErrForbidden):
		return &Error{Kind: KindForbidden, SafeMessage: ErrForbidden.Error(), cause: err}
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: KindNotFound, SafeMessage: ErrNotFound.Error(), cause: err}
	case errors.Is(err, ErrRateLimited):
		return &Error{Kind: KindRateLimited, SafeMessage: ErrRateLimited.Error(), cause: err}
	}

	return &Error{
		Kind:        KindInternal,
		SafeMessage: internalSafeMessage,
		cause:       err,
	}
}
