// Package htcputil carries small JSON convenience helpers: thin glue
// for handlers that want to treat a package's content as JSON rather
// than raw bytes.
package htcputil

import "encoding/json"

// JSONEncode marshals v to JSON bytes, suitable as a handler's
// returned content or a client's request content.
func JSONEncode[T any](v T) ([]byte, error) {
	return json.Marshal(v)
}

// JSONDecode unmarshals JSON bytes into a T, suitable for a handler to
// parse an incoming request's content.
func JSONDecode[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
