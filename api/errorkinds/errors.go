// Package errorkinds enumerates the sentinel errors returned across the
// public API boundary. Callers can match these with errors.Is after
// unwrapping any fault-wrapped chains.
package errorkinds

import "errors"

var (
	// ErrSessionNotExist is returned when an operation is attempted on a
	// session that was never started or has already been torn down.
	ErrSessionNotExist = errors.New("session does not exist")

	// ErrSessionStop is returned when a pending command is abandoned
	// because the session stopped before a reply arrived.
	ErrSessionStop = errors.New("session has stopped")

	// ErrMethodTimeout is returned when a command round-trip to the
	// attribute-protocol engine exceeds its reply timeout.
	ErrMethodTimeout = errors.New("method call timed out")

	// ErrMethodCall is returned when a method call cannot be dispatched,
	// for example due to a missing handler.
	ErrMethodCall = errors.New("method call error")

	// ErrHostClosed is returned when the session host has begun teardown.
	ErrHostClosed = errors.New("gatt host is closed")

	// ErrEndpointClosed is returned when an endpoint is closed more
	// than once, or used after closure.
	ErrEndpointClosed = errors.New("endpoint is closed")

	// ErrRemoteClosed is the disconnect reason delivered to an endpoint
	// whose remote end was closed.
	ErrRemoteClosed = errors.New("remote endpoint closed")

	// ErrNotSupported is returned for operations the active engine or
	// platform does not implement.
	ErrNotSupported = errors.New("operation not supported")
)
