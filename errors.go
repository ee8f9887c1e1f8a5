package goSession

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every local input rejection.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned when the backend refuses a sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationRejected is returned when the backend refuses a sign-up.
	ErrRegistrationRejected = errors.New("registration rejected")
	// ErrEmailTaken is returned by SignUp when the pre-flight email check finds an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnauthorized is returned when the backend refuses the current session token.
	ErrUnauthorized = errors.New("session token rejected")
	// ErrTransport is returned when the backend could not be reached or answered unusably.
	ErrTransport = errors.New("transport failure")
	// ErrManagerNotReady is returned while the stored session is still being read.
	ErrManagerNotReady = errors.New("session manager not initialized")
	// ErrAlreadyAuthenticated is returned by SignIn and SignUp while a session is active.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrNotAuthenticated is returned by operations that need an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrOperationInFlight is returned when another session operation has not finished.
	ErrOperationInFlight = errors.New("session operation already in progress")
)

// ErrorKind classifies an [Error] for callers that branch on cause.
type ErrorKind uint8

const (
	// KindValidation marks local input rejected before any network call.
	KindValidation ErrorKind = iota + 1
	// KindAuthentication marks credentials or tokens refused by the backend.
	KindAuthentication
	// KindTransport marks unreachable backends and unusable answers.
	KindTransport
	// KindState marks operations that are not valid in the current session state.
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindTransport:
		return "transport"
	case KindState:
		return "state"
	}
	return "unknown"
}

// Error is the value returned by Manager operations. Error() is the display message;
// errors.Is matches both the goSession sentinel and the underlying cause.
type Error struct {
	Kind    ErrorKind
	Field   string
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

// ErrorMessage returns the text to show a user for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

func newError(kind ErrorKind, sentinel error, message string, cause error) *Error {
	wrapped := sentinel
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", sentinel, cause)
	}
	if message == "" {
		message = sentinel.Error()
	}
	return &Error{Kind: kind, Message: message, Err: wrapped}
}

var stateMessages = map[error]string{
	ErrManagerNotReady:      "Still loading your session. Please try again in a moment.",
	ErrAlreadyAuthenticated: "You are already signed in.",
	ErrNotAuthenticated:     "You are not signed in.",
	ErrOperationInFlight:    "Please wait for the current request to finish.",
}

func stateError(sentinel error) *Error {
	return newError(KindState, sentinel, stateMessages[sentinel], nil)
}
