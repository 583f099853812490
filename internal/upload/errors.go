package upload

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies upload failures.
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindUpstream     Kind = "UPSTREAM_FAILED"
	KindInternal     Kind = "INTERNAL"
)

// StatusCode maps the kind to the HTTP status returned to the caller.
func (k Kind) StatusCode() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Outcome is the metrics label for the kind.
func (k Kind) Outcome() string {
	return strings.ToLower(string(k))
}

// Error is a classified upload failure. Message is safe to show to the
// uploader.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Outcome returns "success" for a nil error and the kind's label otherwise.
// Errors that are not *Error count as internal.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind.Outcome()
	}
	return KindInternal.Outcome()
}

// Unauthorized is the error for requests without a session or capability.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
}

// Invalid translates a constraint failure (ErrNoFile, ErrNotImage,
// ErrTooLarge, ErrMultipleFiles) into the message the endpoint answers with.
func Invalid(err error) *Error {
	msg := "Invalid upload"
	switch {
	case errors.Is(err, ErrNoFile):
		msg = "No file provided"
	case errors.Is(err, ErrNotImage):
		msg = "File must be an image"
	case errors.Is(err, ErrTooLarge):
		msg = "File size exceeds 50MB limit"
	case errors.Is(err, ErrMultipleFiles):
		msg = "Only one file may be uploaded"
	}
	return &Error{Kind: KindInvalidInput, Message: msg, Err: err}
}
