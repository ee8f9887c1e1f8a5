package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits are the length thresholds applied to credentials.
type Limits struct {
	MinPasswordLength int
	MaxPasswordLength int
	MinUsernameLength int
	MaxUsernameLength int
}

// Error is a single field-level validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Email checks that value is a bare address (no display name).
func Email(value string) *Error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &Error{Field: "email", Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		return &Error{Field: "email", Message: "Enter a valid email address"}
	}
	return nil
}

// Password checks the length bounds, counted in characters.
func Password(value string, l Limits) *Error {
	if value == "" {
		return &Error{Field: "password", Message: "Password is required"}
	}
	n := utf8.RuneCountInString(value)
	if n < l.MinPasswordLength {
		return &Error{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", l.MinPasswordLength)}
	}
	if l.MaxPasswordLength > 0 && n > l.MaxPasswordLength {
		return &Error{Field: "password", Message: fmt.Sprintf("Password must be at most %d characters", l.MaxPasswordLength)}
	}
	return nil
}

// Username checks length and the allowed character set.
func Username(value string, l Limits) *Error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &Error{Field: "username", Message: "Username is required"}
	}
	n := utf8.RuneCountInString(value)
	if n < l.MinUsernameLength {
		return &Error{Field: "username", Message: fmt.Sprintf("Username must be at least %d characters", l.MinUsernameLength)}
	}
	if l.MaxUsernameLength > 0 && n > l.MaxUsernameLength {
		return &Error{Field: "username", Message: fmt.Sprintf("Username must be at most %d characters", l.MaxUsernameLength)}
	}
	if !usernamePattern.MatchString(value) {
		return &Error{Field: "username", Message: "Username may only contain letters, numbers, dots, dashes and underscores"}
	}
	return nil
}

// SignIn validates login input.
func SignIn(identifier, secret string, l Limits) *Error {
	if err := Email(identifier); err != nil {
		return err
	}
	return Password(secret, l)
}

// SignUp validates registration input. confirm is only checked when non-empty.
func SignUp(username, email, password, confirm string, l Limits) *Error {
	if err := Username(username, l); err != nil {
		return err
	}
	if err := Email(email); err != nil {
		return err
	}
	if err := Password(password, l); err != nil {
		return err
	}
	if confirm != "" && confirm != password {
		return &Error{Field: "confirm_password", Message: "Passwords do not match"}
	}
	return nil
}
