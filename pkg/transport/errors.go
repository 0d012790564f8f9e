package transport

import "errors"

// Admission control and acceptor errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed acceptor.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no connection handler is configured.
	ErrNoHandler = errors.New("transport: no connection handler configured")

	// ErrAlreadyStarted is returned when Serve is called on an already running acceptor.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrInvalidMaxConnections marks a max_connections value below 1.
	ErrInvalidMaxConnections = errors.New("transport: max_connections must be >= 1")

	// ErrInvalidHandleConnections marks a handle_connections value below 1
	// or above the configured max_connections.
	ErrInvalidHandleConnections = errors.New("transport: handle_connections must be >= 1 and <= max_connections")
)
