// Package apperr defines the typed error carried from the domain layer
// to the HTTP boundary. Every Error holds an HTTP status and a safe
// message/description pair; anything else is rendered as a generic
// internal error so raw failures never reach the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain failure with a client-safe representation.
type Error struct {
	Code        int
	Message     string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, e.Message, e.Description)
}

// New constructs an Error with an explicit status code.
func New(code int, message, description string) *Error {
	return &Error{Code: code, Message: message, Description: description}
}

// Validation constructs a 400 error for malformed or missing input.
func Validation(description string) *Error {
	return New(http.StatusBadRequest, "Validation Error", description)
}

// Unauthorized constructs a 401 error. The description must not reveal
// which part of the credentials was wrong.
func Unauthorized(description string) *Error {
	return New(http.StatusUnauthorized, "Unauthorized", description)
}

// Conflict constructs a 409 error for duplicate unique keys.
func Conflict(description string) *Error {
	return New(http.StatusConflict, "Conflict", description)
}

// Internal is the generic 500 error returned for unrecognized failures.
func Internal() *Error {
	return New(http.StatusInternalServerError, "Unknown error", "Unknown error")
}

// From returns err as an *Error, or a generic internal error when err
// carries no client-safe representation.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal()
}
