package crypto

import (
	"crypto/aes"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// Profile selects the record cipher a Handshake's derived key backs.
// ProfileCBC is the default, wire-compatible scheme. ProfileAEAD is
// the opt-in authenticated alternative, a separate wire profile that
// is never mixed with ProfileCBC on the same connection.
type Profile int

const (
	// ProfileCBC is unauthenticated AES-256-CBC with PKCS#7 padding,
	// IV || ciphertext on the wire.
	ProfileCBC Profile = iota

	// ProfileAEAD is AES-128-CCM: a separate wire profile that adds a
	// tag the default profile does not have. Selected at Config time
	// on both peers; a peer speaking one profile cannot decrypt
	// records sent under the other.
	ProfileAEAD

	// ProfileChaCha is ChaCha20-Poly1305, for peers that prefer a
	// software-friendly AEAD over AES-CCM. Same wire shape as
	// ProfileAEAD: nonce || ciphertext || tag.
	ProfileChaCha
)

// aeadInfo and chachaInfo are the HKDF info strings for the AEAD
// profiles' derived keys, distinct from hkdfInfo so no two profiles
// share key material even if negotiated from the same Z.
const (
	aeadInfo   = "htcp-aead-key"
	chachaInfo = "htcp-chacha-key"
)

// ProfileAEAD's CCM parameter set: AES-128 with a 13-byte nonce and a
// full 16-byte tag, leaving 2 bytes of message length field.
const (
	ccmKeySize   = 16
	ccmNonceSize = 13
	ccmTagSize   = 16
)

var ErrUnknownProfile = errors.New("crypto: unknown record profile")

// Cipher is the per-connection record encrypt/decrypt oracle a
// completed Handshake exposes.
type Cipher struct {
	profile Profile
	aesKey  []byte // 32 bytes for ProfileCBC/ProfileChaCha, 16 for ProfileAEAD
}

// NewCipher derives a Cipher for profile from the DH shared secret z.
// Each profile uses a distinct HKDF info string, so no two profiles
// collide on key material even when run over the same Z.
func NewCipher(profile Profile, z []byte) (*Cipher, error) {
	switch profile {
	case ProfileCBC:
		key, err := HKDFSHA256(z, nil, []byte(hkdfInfo), AESKeySize)
		if err != nil {
			return nil, err
		}
		return &Cipher{profile: profile, aesKey: key}, nil
	case ProfileAEAD:
		key, err := HKDFSHA256(z, nil, []byte(aeadInfo), ccmKeySize)
		if err != nil {
			return nil, err
		}
		return &Cipher{profile: profile, aesKey: key}, nil
	case ProfileChaCha:
		key, err := HKDFSHA256(z, nil, []byte(chachaInfo), chacha20poly1305.KeySize)
		if err != nil {
			return nil, err
		}
		return &Cipher{profile: profile, aesKey: key}, nil
	default:
		return nil, ErrUnknownProfile
	}
}

// Encrypt produces the wire form of plaintext under c's profile.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	switch c.profile {
	case ProfileCBC:
		return Encrypt(c.aesKey, plaintext)
	case ProfileAEAD:
		return aeadSeal(c.aesKey, plaintext)
	case ProfileChaCha:
		return chachaSeal(c.aesKey, plaintext)
	default:
		return nil, ErrUnknownProfile
	}
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	switch c.profile {
	case ProfileCBC:
		return Decrypt(c.aesKey, data)
	case ProfileAEAD:
		return aeadOpen(c.aesKey, data)
	case ProfileChaCha:
		return chachaOpen(c.aesKey, data)
	default:
		return nil, ErrUnknownProfile
	}
}

// aeadSeal draws a fresh random nonce and returns nonce || ciphertext || tag.
func aeadSeal(key, plaintext []byte) ([]byte, error) {
	aead, err := newProfileCCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, ccmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed, err := aead.seal(nonce, plaintext, nil)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(nonce)+len(sealed))
	copy(out, nonce)
	copy(out[len(nonce):], sealed)
	return out, nil
}

// aeadOpen splits nonce || ciphertext || tag and verifies+decrypts.
func aeadOpen(key, data []byte) ([]byte, error) {
	if len(data) < ccmNonceSize+ccmTagSize {
		return nil, errCCMTooShort
	}

	aead, err := newProfileCCM(key)
	if err != nil {
		return nil, err
	}

	return aead.open(data[:ccmNonceSize], data[ccmNonceSize:], nil)
}

// newProfileCCM builds the CCM instance for ProfileAEAD's parameter set.
func newProfileCCM(key []byte) (*ccm, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return newCCM(block, ccmNonceSize, ccmTagSize)
}

// chachaSeal draws a fresh random nonce and returns nonce || ciphertext || tag.
func chachaSeal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, len(nonce), len(nonce)+len(plaintext)+aead.Overhead())
	copy(out, nonce)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// chachaOpen splits nonce || ciphertext || tag and verifies+decrypts.
func chachaOpen(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(data) < chacha20poly1305.NonceSize+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce := data[:chacha20poly1305.NonceSize]
	sealed := data[chacha20poly1305.NonceSize:]
	return aead.Open(nil, nonce, sealed, nil)
}
