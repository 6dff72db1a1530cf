package outlook

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when a session is used before a
	// successful Authenticate.
	ErrNotAuthenticated = errors.New("session is not authenticated")

	// ErrAlreadySent is returned when an outbound message is modified or
	// sent again after a successful send.
	ErrAlreadySent = errors.New("message already sent")
)

// AuthenticationError indicates that binding to the mailbox failed.
// Err holds the underlying cause (bad credentials, network failure,
// access denied).
type AuthenticationError struct {
	Username string
	Mailbox  string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf(
		"authentication failed for %s (mailbox %s): %v",
		e.Username, e.Mailbox, e.Err,
	)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err (or any error in its chain)
// is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// ValidationError indicates that caller-supplied input violates an
// invariant of the message being built.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

// IsValidationError reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
