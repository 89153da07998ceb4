package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoSession is returned when no valid session backs a request.
	ErrNoSession = errors.New("no active session")

	// ErrAlreadySignedIn is returned when a new sign-in is started while a
	// session is already active.
	ErrAlreadySignedIn = errors.New("user is already signed in")
)

// CodeSessionExists is the provider error code for a sign-in started on top of
// an active session.
const CodeSessionExists = "session_exists"

// ErrorDetail is one structured error returned by the provider.
type ErrorDetail struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	LongMessage string `json:"long_message,omitempty"`
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int           `json:"-"`
	Errors     []ErrorDetail `json:"errors"`
}

// Error returns the provider's first message, falling back to the status.
func (e *APIError) Error() string {
	if msg := e.FirstMessage(); msg != "" {
		return msg
	}
	return fmt.Sprintf("identity provider returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// FirstMessage returns the message of the first structured error, or "".
func (e *APIError) FirstMessage() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// Is lets callers match provider responses against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAlreadySignedIn:
		for _, d := range e.Errors {
			if d.Code == CodeSessionExists {
				return true
			}
		}
	case ErrNoSession:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusNotFound
	}
	return false
}

// FirstMessage extracts the provider's first structured message from err.
// It returns "" when err carries no provider error.
func FirstMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.FirstMessage()
	}
	return ""
}

// IsAlreadySignedIn reports whether err means a session already exists.
// Some provider paths only say so in the message text.
func IsAlreadySignedIn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadySignedIn) {
		return true
	}
	return strings.Contains(err.Error(), "already signed in")
}
