package handler

import "errors"

// Registry errors.
var (
	// ErrUnknownTransaction marks a dispatch for a transaction with no
	// registered handler.
	ErrUnknownTransaction = errors.New("handler: unknown transaction")

	// ErrHandlerType marks a handler that returned something other than
	// a []byte.
	ErrHandlerType = errors.New("handler: handler returned non-[]byte value")
)
