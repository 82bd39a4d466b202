package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error into the response taxonomy.
type Kind int

const (
	Internal Kind = iota
	NotFound
	BadRequest
	Unauthorized
	Forbidden
)

// Status maps a Kind to its HTTP status code
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed API error carrying a client-safe message. Wrapped
// causes stay server-side; clients only ever see Message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an API error with a client-safe message
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an API error carrying an underlying cause
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internalf creates an Internal error with a formatted server-side cause.
// The client-visible message is always generic.
func Internalf(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    Internal,
		Message: "Something went wrong",
		Err:     fmt.Errorf(format, args...),
	}
}

// AsError extracts the typed API error from err, converting unknown
// errors to Internal so store failures are never leaked verbatim.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: Internal, Message: "Something went wrong", Err: err}
}

// FormatMessage renders the client-facing message body text,
// e.g. "Error Unauthorized: Invalid credentials."
func FormatMessage(status int, message string) string {
	return fmt.Sprintf("Error %s: %s.", http.StatusText(status), message)
}
