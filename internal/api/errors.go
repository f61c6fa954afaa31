package api

import (
	"errors"
	"fmt"
	"net/http"

	"finconsole/internal/core"
)

// ErrorKind classifies a failed Entity Store interaction.
type ErrorKind int

const (
	// KindNetwork is a transport failure: the Entity Store was not reached
	// or the connection broke before a status arrived.
	KindNetwork ErrorKind = iota + 1
	// KindServer is a non-2xx response with a JSON body.
	KindServer
	// KindServerNoBody is a non-2xx response without a parseable body.
	KindServerNoBody
	// KindValidation is a form rejected by the console before submission.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindServerNoBody:
		return "server_no_body"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

const (
	MsgUnknown     = "An unknown error occurred"
	MsgNetwork     = "Unable to reach the server, please try again"
	MsgInvalidData = "The server returned an unexpected response"
)

// Error is returned by every Client call that did not succeed.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("entity store %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("entity store %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("entity store %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthorized reports whether the Entity Store rejected the bearer token.
func (e *Error) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// statusMessage picks the message shown for a non-2xx response: the body's
// message verbatim, else the status line for a JSON body without one.
func statusMessage(status int, message string) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

// IsUnauthorized reports whether err carries a 401 from the Entity Store.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// IsNotFound reports whether the Entity Store answered 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Describe maps any error produced while serving a console action to its
// kind and the message shown to the user.
func Describe(err error) (ErrorKind, string) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, apiErr.Message
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return KindValidation, vErr.Error()
	}
	return KindServerNoBody, MsgUnknown
}
