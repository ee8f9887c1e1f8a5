package api

import (
	"errors"
	"net/http"
)

var (
	// ErrRejected means the backend answered and refused the request.
	ErrRejected = errors.New("request rejected")
	// ErrUnauthorized means a bearer call was refused because the token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport means no usable answer was received.
	ErrTransport = errors.New("transport failure")
)

// Error carries the HTTP status and the human-readable message for a failed call.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind error, status int, message string) *Error {
	if message == "" {
		message = defaultMessage(kind, status)
	}
	return &Error{Status: status, Message: message, Err: kind}
}

func defaultMessage(kind error, status int) string {
	switch {
	case errors.Is(kind, ErrTransport):
		return "Unable to reach the server. Check your connection and try again."
	case errors.Is(kind, ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case status != 0 && http.StatusText(status) != "":
		return http.StatusText(status)
	}
	return "Request failed"
}
