package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

// cbcBlockSize is the AES block size (always 16 bytes), also the
// PKCS#7 padding granularity and the IV length.
const cbcBlockSize = 16

// Errors for the default (unauthenticated) AES-CBC record cipher.
var (
	// ErrInvalidKeySize marks an AES key that is not 32 bytes (AES-256).
	ErrInvalidKeySize = errors.New("crypto: AES key must be 32 bytes")

	// ErrCiphertextTooShort marks ciphertext that does not hold an IV
	// followed by at least one whole block, or whose length after the
	// IV is not a multiple of the block size.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext shorter than one IV")

	// ErrInvalidPadding marks a PKCS#7 padding check failure on decrypt.
	// This can also indicate tampering, since CBC here
	// carries no authentication tag.
	ErrInvalidPadding = errors.New("crypto: invalid PKCS#7 padding")
)

// Encrypt PKCS#7-pads plaintext to the AES block size, draws a fresh
// random 16-byte IV, and returns IV || AES-256-CBC(plaintext). A new
// IV is required per call: CBC is not nonce-misuse-resistant.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext)

	iv := make([]byte, cbcBlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, len(iv)+len(ciphertext))
	copy(out, iv)
	copy(out[len(iv):], ciphertext)
	return out, nil
}

// Decrypt reverses Encrypt: splits IV || ciphertext, AES-256-CBC
// decrypts, and validates + strips PKCS#7 padding. The padding check
// rejects if the final byte is 0 or > cbcBlockSize, or if any of the
// trailing n bytes disagree with n.
func Decrypt(key, data []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, ErrInvalidKeySize
	}
	if len(data) < cbcBlockSize {
		return nil, ErrCiphertextTooShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := data[:cbcBlockSize]
	ciphertext := data[cbcBlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%cbcBlockSize != 0 {
		return nil, ErrCiphertextTooShort
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded)
}

func pkcs7Pad(data []byte) []byte {
	padLen := cbcBlockSize - (len(data) % cbcBlockSize)
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > cbcBlockSize || padLen > len(data) {
		return nil, ErrInvalidPadding
	}

	for i := len(data) - padLen; i < len(data); i++ {
		if data[i] != byte(padLen) {
			return nil, ErrInvalidPadding
		}
	}

	return data[:len(data)-padLen], nil
}
