package session

import "errors"

// Connection state machine errors.
var (
	// ErrUnknownHandshakeType marks a handshake message whose "type"
	// field is neither "dh_init" nor "dh_reply" as expected for the
	// side performing the handshake.
	ErrUnknownHandshakeType = errors.New("session: unknown handshake message type")

	// ErrAuthFailed marks any failure during the Authenticating state:
	// a frame error, a non-"_auth" transaction, a missing passkey, or a
	// mismatched passkey. This always closes the connection silently,
	// never reported to the peer.
	ErrAuthFailed = errors.New("session: authentication failed")
)
