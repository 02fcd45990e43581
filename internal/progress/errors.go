package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a failure to reach the server or read its answer.
	ErrTransport = errors.New("transport error")
	// ErrUnsuccessful marks a well-formed answer with success=false.
	ErrUnsuccessful = errors.New("request unsuccessful")
	// ErrContainerNotFound is returned when a binder is built without a render surface.
	ErrContainerNotFound = errors.New("container not found")
)

// RequestError describes a failed call against a progress endpoint.
type RequestError struct {
	Op         string // "get", "list", "active", "delete", "stream"
	URL        string
	StatusCode int    // 0 when no response was received
	Message    string // server-provided error text, if any
	Kind       error  // ErrTransport or ErrUnsuccessful
	Err        error  // underlying cause, optional
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "unknown error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.URL, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.URL, msg)
}

// Unwrap exposes both the classification sentinel and the cause.
func (e *RequestError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
