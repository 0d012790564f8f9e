package htcp

import "errors"

// Configuration and server-lifecycle errors.
var (
	// ErrInvalidMaxConnections marks a MaxConnections value below 1.
	ErrInvalidMaxConnections = errors.New("htcp: max_connections must be >= 1")

	// ErrInvalidHandleConnections marks a HandleConnections value below
	// 1 or above MaxConnections.
	ErrInvalidHandleConnections = errors.New("htcp: handle_connections must be >= 1 and <= max_connections")

	// ErrAlreadyServing marks a second call to Serve on a running Server.
	ErrAlreadyServing = errors.New("htcp: server already serving")
)
