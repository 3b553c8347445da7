package voltgo

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the requested entity does not exist on the
	// service. REST calls that hit a 404 wrap it; cache lookups report misses
	// through their (value, bool) returns instead, since absence there is an
	// expected outcome during event races.
	ErrNotFound = errors.New("voltgo: not found")
	// ErrAuthRejected indicates the gateway refused the credential. Fatal; no
	// reconnect is attempted.
	ErrAuthRejected = errors.New("voltgo: authentication rejected")
	// ErrHeartbeatTimeout indicates the gateway missed a heartbeat ack.
	ErrHeartbeatTimeout = errors.New("voltgo: heartbeat timed out")
	// ErrReconnectExhausted indicates the bounded reconnect budget ran out.
	ErrReconnectExhausted = errors.New("voltgo: reconnect attempts exhausted")
	// ErrConnectionClosed indicates the session was closed and cannot be reused.
	ErrConnectionClosed = errors.New("voltgo: connection closed")
	// ErrSessionActive indicates Run or Start was called on a client that
	// already owns a live session.
	ErrSessionActive = errors.New("voltgo: session already active")
)

// TransportError reports a failed REST call. It is surfaced to the caller and
// never retried by the library.
type TransportError struct {
	// Status is the HTTP status code returned by the service.
	Status int
	// Body is the raw response body, truncated by the transport.
	Body string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("voltgo: transport error: status %d: %s", e.Status, e.Body)
}

// Unwrap maps a 404 response onto ErrNotFound so callers can test for absence
// without inspecting status codes.
func (e *TransportError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}

	return nil
}

// DecodeError reports a single malformed gateway envelope. The stream
// continues; the error is logged by the connection.
type DecodeError struct {
	// Type is the envelope type tag, when present.
	Type string
	// Reason describes the missing or malformed field.
	Reason string
	// Err is the underlying parse error, when any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voltgo: decode %s envelope: %s: %v", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("voltgo: decode %s envelope: %s", e.Type, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
