// Package proto implements the HTCP package codec: translating between
// Package values and the JSON payload carried inside a wire.Frame.
package proto

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/htcpproto/htcp/pkg/wire"
)

// Default protocol tags filled into a Package when not supplied by the
// caller. These are implementation-defined version markers echoed
// through unchanged by both peers.
const (
	DefaultProtocolVersion = "1.0"
	DefaultProtocolID      = 1
)

// Package is the sole application-level message HTCP carries. Content
// is opaque to the protocol; HTCP never inspects it beyond framing and
// (optionally) encrypting it.
type Package struct {
	// Transaction names the logical operation this package invokes.
	// Must be non-empty.
	Transaction string

	// Content is the handler's opaque input/output.
	Content []byte

	// UUID correlates a response to its request. Always present on the
	// wire; generated if absent when a Package is constructed.
	UUID string

	// FromAddr is the "host:port" the server stamps into responses.
	FromAddr string

	// ProtocolVersion and ProtocolID are implementation-defined version
	// tags echoed through unchanged.
	ProtocolVersion string
	ProtocolID      int

	// Passkey carries the transport-level auth token. Only meaningful
	// on the "_auth" package; nil everywhere else.
	Passkey *string
}

// wireJSON mirrors the on-wire JSON schema. Content is base64 of the
// raw bytes; from/passkey are optional.
type wireJSON struct {
	ProtocolVersion string  `json:"protocol_version"`
	ProtocolID      int     `json:"protocol_id"`
	UUID            string  `json:"uuid"`
	Transaction     string  `json:"transaction"`
	From            *string `json:"from"`
	Content         string  `json:"content"`
	Passkey         *string `json:"passkey,omitempty"`
}

// New constructs a Package with a freshly generated v4 UUID and the
// default protocol tags.
func New(transaction string, content []byte) *Package {
	return &Package{
		Transaction:     transaction,
		Content:         content,
		UUID:            uuid.New().String(),
		ProtocolVersion: DefaultProtocolVersion,
		ProtocolID:      DefaultProtocolID,
	}
}

// applyDefaults fills in a freshly-decoded Package's absent fields,
// mirroring the constructor defaults a programmatically-built Package
// would get.
func (p *Package) applyDefaults() {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	if p.ProtocolVersion == "" {
		p.ProtocolVersion = DefaultProtocolVersion
	}
	if p.ProtocolID == 0 {
		p.ProtocolID = DefaultProtocolID
	}
}

// Encode serializes p to its wire JSON payload: the plaintext bytes
// that wire.Encode (and optionally the record cipher) subsequently
// frame and encrypt.
func Encode(p *Package) ([]byte, error) {
	if p.Transaction == "" {
		return nil, ErrEmptyTransaction
	}

	wp := wireJSON{
		ProtocolVersion: p.ProtocolVersion,
		ProtocolID:      p.ProtocolID,
		UUID:            p.UUID,
		Transaction:     p.Transaction,
		Content:         base64.StdEncoding.EncodeToString(p.Content),
		Passkey:         p.Passkey,
	}
	if p.FromAddr != "" {
		from := p.FromAddr
		wp.From = &from
	}

	return json.Marshal(wp)
}

// Decode parses a wire JSON payload into a Package. Missing optional
// fields decode to absent; unknown fields are ignored for forward
// compatibility (the encoding/json decoder does this by default).
func Decode(data []byte) (*Package, error) {
	var wp wireJSON
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, ErrMalformedJSON
	}
	if wp.Transaction == "" {
		return nil, ErrEmptyTransaction
	}

	content, err := base64.StdEncoding.DecodeString(wp.Content)
	if err != nil {
		return nil, ErrMalformedContent
	}
	if content == nil {
		content = []byte{}
	}

	p := &Package{
		Transaction:     wp.Transaction,
		Content:         content,
		UUID:            wp.UUID,
		ProtocolVersion: wp.ProtocolVersion,
		ProtocolID:      wp.ProtocolID,
		Passkey:         wp.Passkey,
	}
	if wp.From != nil {
		p.FromAddr = *wp.From
	}
	p.applyDefaults()

	return p, nil
}

// Flags computes the wire.Encode flags implied by p and the caller's
// encrypted/isResponse intent.
func (p *Package) Flags(encrypted, isResponse bool) uint8 {
	var flags uint8
	if encrypted {
		flags |= wire.FlagEncrypted
	}
	if p.Passkey != nil {
		flags |= wire.FlagPasskey
	}
	if isResponse {
		flags |= wire.FlagResponse
	}
	return flags
}

// errorBody is the JSON shape of an error package's content.
type errorBody struct {
	Error string `json:"error"`
}

// NewErrorPackage builds a Package reporting message for the given
// transaction, echoing requestUUID (or minting a fresh one if empty).
func NewErrorPackage(transaction, message, requestUUID string) *Package {
	body, _ := json.Marshal(errorBody{Error: message})
	p := &Package{
		Transaction: transaction,
		Content:     body,
		UUID:        requestUUID,
	}
	p.applyDefaults()
	return p
}
