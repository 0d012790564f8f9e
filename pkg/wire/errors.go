package wire

import "errors"

// Frame-level errors.
var (
	// ErrProtocol marks a malformed frame: impossible length or a short
	// read in the middle of a frame. Closes the connection.
	ErrProtocol = errors.New("wire: protocol error")

	// ErrClosed marks a clean peer close observed between frames. Not
	// an error condition; the connection is released normally.
	ErrClosed = errors.New("wire: connection closed")

	// ErrFrameTooLarge marks a frame whose total length exceeds MaxFrameLen.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum length")

	// ErrReservedFlags marks an attempt to encode a frame with reserved
	// flag bits (3-7) set.
	ErrReservedFlags = errors.New("wire: reserved flag bits must be zero")
)
