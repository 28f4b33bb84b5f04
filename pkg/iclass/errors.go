package iclass

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is returned by authenticated calls made before Login.
var ErrNotLoggedIn = errors.New("iclass: not logged in")

// TransportError reports a request that could not complete: network
// failure, timeout or a non-2xx status after all retry attempts.
type TransportError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("iclass %s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError reports an application-level rejection: the service answered
// but with STATUS other than "0".
type APIError struct {
	Op      string
	Status  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request rejected"
	}
	if e.Code != "" {
		return fmt.Sprintf("iclass %s: STATUS=%s ERRCODE=%s: %s", e.Op, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("iclass %s: STATUS=%s: %s", e.Op, e.Status, msg)
}

// DecodeError reports a response body that is not the expected JSON.
// Snippet holds the beginning of the body.
type DecodeError struct {
	Op      string
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("iclass %s: unexpected response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRejected reports whether err is an application-level rejection.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
