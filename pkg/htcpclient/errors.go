package htcpclient

import (
	"errors"
	"fmt"
)

// ErrUnknownHandshakeType marks a handshake message whose "type" field
// is not "dh_init" as expected for the client's handshake role.
var ErrUnknownHandshakeType = errors.New("htcpclient: unknown handshake message type")

// CorrelationError marks an ask() response whose uuid does not match
// the request's uuid.
type CorrelationError struct {
	Want string
	Got  string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("htcpclient: response uuid %q does not match request uuid %q", e.Got, e.Want)
}
