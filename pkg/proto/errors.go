package proto

import "errors"

// Package codec errors.
var (
	// ErrEmptyTransaction marks a Package whose Transaction field is empty.
	ErrEmptyTransaction = errors.New("proto: transaction must be non-empty")

	// ErrMalformedJSON marks a payload that is not valid wire JSON.
	ErrMalformedJSON = errors.New("proto: malformed package JSON")

	// ErrMalformedContent marks a content field that is not valid base64.
	ErrMalformedContent = errors.New("proto: content is not valid base64")
)
