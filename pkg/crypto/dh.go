// Package crypto implements the HTCP session crypto layer: Diffie-Hellman
// key agreement over the raw TCP stream, HKDF-SHA256 key derivation, and
// the resulting AES-CBC record cipher.
//
// Known limitation: the DH exchange here is unauthenticated (an active
// attacker can sit in the middle) and the default record cipher is
// AES-CBC without a MAC. That is the protocol's wire format; see
// Profile for the opt-in authenticated alternative.
package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// group14PHex is the RFC 3526 Group 14 2048-bit MODP prime, fixed for
// every HTCP handshake to avoid parameter-generation latency and
// interop surprises.
const group14PHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

// group14G is the generator for RFC 3526 Group 14.
const group14G = 2

// hkdfInfo is the fixed HKDF info string binding the derived key to
// this protocol.
const hkdfInfo = "htcp-aes-key"

// AESKeySize is the length in bytes of the derived AES-256 key.
const AESKeySize = 32

var group14P = mustParseHex(group14PHex)

func mustParseHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("crypto: invalid Group 14 prime constant")
	}
	return n
}

// Params is the DH parameter pair (p, g). The server owns and
// transmits these; the client loads them from the server's dh_init
// message.
type Params struct {
	P *big.Int
	G *big.Int
}

// DefaultParams returns the fixed RFC 3526 Group 14 parameters.
func DefaultParams() Params {
	return Params{P: new(big.Int).Set(group14P), G: big.NewInt(group14G)}
}

// ParamsFromInts loads parameters received from a peer (the client
// path: load the server's advertised p, g).
func ParamsFromInts(p, g *big.Int) Params {
	return Params{P: new(big.Int).Set(p), G: new(big.Int).Set(g)}
}

// handshakeState enforces the Fresh -> ParamsLoaded -> KeysGenerated ->
// SharedDerived progression: only SharedDerived permits Encrypt/Decrypt.
type handshakeState int

const (
	stateFresh handshakeState = iota
	stateParamsLoaded
	stateKeysGenerated
	stateSharedDerived
)

// Handshake drives one side's DH key agreement and, once complete,
// owns the shared secret backing the session's record cipher.
type Handshake struct {
	state   handshakeState
	params  Params
	private *big.Int
	public  *big.Int
	shared  []byte
}

// NewServerHandshake starts a handshake as the parameter owner: it
// loads the fixed Group 14 DH parameters and generates a fresh private
// exponent, ready to advertise its public value via a dh_init message.
func NewServerHandshake() (*Handshake, error) {
	h := &Handshake{params: DefaultParams(), state: stateParamsLoaded}
	if err := h.generateKeyPair(); err != nil {
		return nil, err
	}
	return h, nil
}

// NewClientHandshake starts a handshake from parameters received in a
// peer's dh_init message.
func NewClientHandshake(p, g *big.Int) (*Handshake, error) {
	h := &Handshake{params: ParamsFromInts(p, g), state: stateParamsLoaded}
	if err := h.generateKeyPair(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handshake) generateKeyPair() error {
	if h.state != stateParamsLoaded {
		return ErrCryptoState
	}

	private, err := rand.Int(rand.Reader, h.params.P)
	if err != nil {
		return err
	}
	// Avoid a degenerate private exponent of 0.
	if private.Sign() == 0 {
		private.SetInt64(1)
	}

	h.private = private
	h.public = new(big.Int).Exp(h.params.G, private, h.params.P)
	h.state = stateKeysGenerated
	return nil
}

// Params returns the (p, g) this handshake is using, for embedding in
// a dh_init message.
func (h *Handshake) Params() Params {
	return h.params
}

// PublicValue returns this side's public DH value A (or B), for
// embedding in a dh_init/dh_reply message.
func (h *Handshake) PublicValue() *big.Int {
	return h.public
}

// DeriveShared computes the shared secret Z = peerPublic^private mod p.
// The record cipher key itself is derived lazily by Cipher, once the
// caller picks a Profile.
func (h *Handshake) DeriveShared(peerPublic *big.Int) error {
	if h.state != stateKeysGenerated {
		return ErrCryptoState
	}
	if peerPublic == nil || peerPublic.Sign() <= 0 || peerPublic.Cmp(h.params.P) >= 0 {
		return ErrInvalidPublicValue
	}

	shared := new(big.Int).Exp(peerPublic, h.private, h.params.P)

	h.shared = shared.Bytes()
	h.state = stateSharedDerived
	return nil
}

// Cipher derives the record Cipher for profile from this handshake's
// shared secret. Only valid once DeriveShared has succeeded.
func (h *Handshake) Cipher(profile Profile) (*Cipher, error) {
	if h.state != stateSharedDerived {
		return nil, ErrCryptoState
	}
	return NewCipher(profile, h.shared)
}

// Errors surfaced by the handshake state machine.
var (
	// ErrCryptoState marks an operation attempted out of sequence
	// (e.g. DeriveShared before keys were generated).
	ErrCryptoState = errors.New("crypto: handshake used out of sequence")

	// ErrInvalidPublicValue marks a peer public value outside (0, p).
	ErrInvalidPublicValue = errors.New("crypto: invalid peer public value")
)
