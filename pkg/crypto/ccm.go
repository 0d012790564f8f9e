package crypto

import (
	"crypto/cipher"
	"crypto/subtle"
	"errors"
)

// AES-CCM record cipher (NIST 800-38C, RFC 3610) backing ProfileAEAD.
// CCM composes two standard modes over one AES key: a CBC-MAC over the
// length-framed input for the tag, and CTR mode for confidentiality.
// Both are driven through crypto/cipher here rather than hand-rolled
// block loops.

// aesBlockSize is the AES block size, the CBC-MAC and CTR granularity.
const aesBlockSize = 16

var (
	errCCMNonceSize      = errors.New("crypto: CCM nonce size out of range")
	errCCMTagSize        = errors.New("crypto: CCM tag size out of range")
	errCCMMessageTooLong = errors.New("crypto: CCM message exceeds length field capacity")
	errCCMTooShort       = errors.New("crypto: CCM ciphertext shorter than its tag")
	errCCMAuth           = errors.New("crypto: CCM authentication failed")
)

// ccm is an AES-CCM instance for one (nonce size, tag size) parameter
// pair. The length field occupies the 15-nonceSize bytes the nonce
// leaves free in each block, so a longer nonce caps the maximum
// message length.
type ccm struct {
	block     cipher.Block
	nonceSize int
	tagSize   int
}

func newCCM(block cipher.Block, nonceSize, tagSize int) (*ccm, error) {
	// 15 - nonceSize must leave 2..8 bytes for the length field.
	if nonceSize < 7 || nonceSize > 13 {
		return nil, errCCMNonceSize
	}
	if tagSize < 4 || tagSize > 16 || tagSize%2 != 0 {
		return nil, errCCMTagSize
	}
	return &ccm{block: block, nonceSize: nonceSize, tagSize: tagSize}, nil
}

func (c *ccm) lenSize() int {
	return 15 - c.nonceSize
}

func (c *ccm) maxLength() int {
	if c.lenSize() >= 8 {
		return int(^uint(0) >> 1)
	}
	return 1<<(8*c.lenSize()) - 1
}

// seal returns ciphertext || tag.
func (c *ccm) seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != c.nonceSize {
		return nil, errCCMNonceSize
	}
	if len(plaintext) > c.maxLength() {
		return nil, errCCMMessageTooLong
	}

	tag := c.mac(nonce, plaintext, aad)

	out := make([]byte, len(plaintext)+c.tagSize)
	stream := c.keystream(nonce)

	// The first keystream block (counter 0) masks the tag; the
	// payload starts at counter 1.
	s0 := make([]byte, aesBlockSize)
	stream.XORKeyStream(s0, s0)
	for i := 0; i < c.tagSize; i++ {
		out[len(plaintext)+i] = tag[i] ^ s0[i]
	}
	stream.XORKeyStream(out[:len(plaintext)], plaintext)
	return out, nil
}

// open splits ciphertext || tag, decrypts, and verifies the tag in
// constant time.
func (c *ccm) open(nonce, sealed, aad []byte) ([]byte, error) {
	if len(nonce) != c.nonceSize {
		return nil, errCCMNonceSize
	}
	if len(sealed) < c.tagSize {
		return nil, errCCMTooShort
	}

	body := sealed[:len(sealed)-c.tagSize]
	maskedTag := sealed[len(sealed)-c.tagSize:]

	stream := c.keystream(nonce)
	s0 := make([]byte, aesBlockSize)
	stream.XORKeyStream(s0, s0)

	tag := make([]byte, c.tagSize)
	for i := range tag {
		tag[i] = maskedTag[i] ^ s0[i]
	}

	plaintext := make([]byte, len(body))
	stream.XORKeyStream(plaintext, body)

	if subtle.ConstantTimeCompare(tag, c.mac(nonce, plaintext, aad)) != 1 {
		return nil, errCCMAuth
	}
	return plaintext, nil
}

// keystream returns the CTR stream over counter blocks A_0, A_1, ...
// The stdlib CTR increment matches CCM's: the counter occupies the
// trailing length-field bytes and never carries past them, because
// seal bounds the message length to the field's capacity.
func (c *ccm) keystream(nonce []byte) cipher.Stream {
	a0 := make([]byte, aesBlockSize)
	a0[0] = byte(c.lenSize() - 1)
	copy(a0[1:], nonce)
	return cipher.NewCTR(c.block, a0)
}

// mac computes the CBC-MAC tag over B_0 || encoded AAD || payload,
// each zero-padded to the block size, and truncates to tagSize.
func (c *ccm) mac(nonce, plaintext, aad []byte) []byte {
	buf := make([]byte, aesBlockSize, aesBlockSize+len(aad)+10+len(plaintext)+aesBlockSize)

	// B_0: flags || nonce || message length.
	flags := byte(c.lenSize() - 1)
	flags |= byte((c.tagSize-2)/2) << 3
	if len(aad) > 0 {
		flags |= 1 << 6
	}
	buf[0] = flags
	copy(buf[1:], nonce)
	for i, n := 0, len(plaintext); i < c.lenSize(); i++ {
		buf[aesBlockSize-1-i] = byte(n)
		n >>= 8
	}

	if len(aad) > 0 {
		buf = appendAADLength(buf, len(aad))
		buf = append(buf, aad...)
		buf = padToBlock(buf)
	}
	buf = append(buf, plaintext...)
	buf = padToBlock(buf)

	mac := make([]byte, len(buf))
	zeroIV := make([]byte, aesBlockSize)
	cipher.NewCBCEncrypter(c.block, zeroIV).CryptBlocks(mac, buf)

	// The tag is the final CBC block.
	return mac[len(mac)-aesBlockSize:][:c.tagSize]
}

// appendAADLength appends the RFC 3610 variable-width AAD length
// encoding: 2 bytes below 0xFF00, 0xFFFE + 4 bytes below 2^32,
// 0xFFFF + 8 bytes above.
func appendAADLength(buf []byte, n int) []byte {
	switch {
	case n < 0xFF00:
		return append(buf, byte(n>>8), byte(n))
	case uint64(n) < 1<<32:
		return append(buf, 0xFF, 0xFE,
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(buf, 0xFF, 0xFF,
			byte(n>>56), byte(n>>48), byte(n>>40), byte(n>>32),
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

func padToBlock(buf []byte) []byte {
	for len(buf)%aesBlockSize != 0 {
		buf = append(buf, 0)
	}
	return buf
}
