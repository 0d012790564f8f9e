package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFSHA256 derives key material using HKDF-SHA256 (RFC 5869):
// HKDF = HKDF-Expand(PRK := HKDF-Extract(salt, IKM), info, L).
//
// Parameters:
//   - inputKey: input keying material (the DH shared secret Z)
//   - salt: optional salt value (nil or empty; HTCP always uses an empty salt)
//   - info: context/application-specific info ("htcp-aes-key" for the
//     session record key)
//   - length: number of bytes to derive
//
// Returns the derived key material of the specified length.
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}
