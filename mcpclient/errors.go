package mcpclient

import (
	"fmt"
	"strings"
)

// TransportError is any failure between the agent and a tool server:
// unparseable addresses, spawn or handshake failures, and broken
// calls. It keeps every underlying cause so grouped failures from a
// torn-down session are not reduced to a single message.
type TransportError struct {
	Message string
	Causes  []error
}

// NewTransportError builds a TransportError from a message and any
// number of causes. Nil causes are dropped.
func NewTransportError(message string, causes ...error) *TransportError {
	e := &TransportError{Message: message}
	for _, cause := range causes {
		if cause != nil {
			e.Causes = append(e.Causes, cause)
		}
	}
	return e
}

func (e *TransportError) Error() string {
	if len(e.Causes) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Causes))
	for i, cause := range e.Causes {
		parts[i] = cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
}

// Unwrap exposes all causes to errors.Is and errors.As.
func (e *TransportError) Unwrap() []error { return e.Causes }
