// Package wire implements the HTCP frame codec: the 5-byte length+flags
// header that wraps every package payload on the wire, plus the raw
// length-prefixed framing used only during the DH handshake.
package wire

import (
	"encoding/binary"
	"io"
)

// Flag bits for the header's single flags byte. Bits 3-7 are reserved
// and MUST be zero.
const (
	// FlagEncrypted marks the payload as encrypted under the
	// connection's record cipher (AES-CBC in the default profile).
	FlagEncrypted uint8 = 1 << 0

	// FlagPasskey marks the package as carrying a passkey field.
	FlagPasskey uint8 = 1 << 1

	// FlagResponse marks the frame as a response rather than a request.
	FlagResponse uint8 = 1 << 2

	flagsReservedMask uint8 = 0xF8
)

// HeaderSize is the size in bytes of the length+flags header.
const HeaderSize = 5

// MaxFrameLen is the default implementation cap on total frame length
// (header inclusive). Frames above this are rejected with ErrFrameTooLarge.
const MaxFrameLen = 16 * 1024 * 1024

// Encode produces the on-wire frame for payload under the given flags:
// BE32(HeaderSize+len(payload)) || flags || payload.
func Encode(payload []byte, flags uint8) ([]byte, error) {
	total := HeaderSize + len(payload)
	if total > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}
	if flags&flagsReservedMask != 0 {
		return nil, ErrReservedFlags
	}

	frame := make([]byte, total)
	binary.BigEndian.PutUint32(frame[0:4], uint32(total))
	frame[4] = flags
	copy(frame[5:], payload)
	return frame, nil
}

// ReadFrame reads exactly one frame from r: the 5-byte header, then
// length-5 more bytes of payload. A clean EOF before any byte of the
// header is read is reported as ErrClosed; any other short read is
// ErrProtocol.
func ReadFrame(r io.Reader) (flags uint8, payload []byte, err error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return 0, nil, ErrClosed
		}
		return 0, nil, ErrProtocol
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length < HeaderSize {
		return 0, nil, ErrProtocol
	}
	if length > MaxFrameLen {
		return 0, nil, ErrFrameTooLarge
	}

	flags = header[4]

	payloadLen := length - HeaderSize
	if payloadLen == 0 {
		return flags, nil, nil
	}

	payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, ErrProtocol
	}
	return flags, payload, nil
}

// PeekFlag reports whether the flags byte in a 5-byte header (or any
// longer buffer starting with one) has mask set, without touching the
// payload.
func PeekFlag(header []byte, mask uint8) bool {
	if len(header) < HeaderSize {
		return false
	}
	return header[4]&mask != 0
}

// Rehead builds a fresh 5-byte header whose length word reflects a
// plaintext payload of newPayloadLen bytes, after decryption has
// changed the effective payload size. The given flags are carried
// over unchanged.
func Rehead(flags uint8, newPayloadLen int) []byte {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(HeaderSize+newPayloadLen))
	header[4] = flags
	return header
}

// WriteRaw writes data using the handshake-only raw framing: a 4-byte
// big-endian length prefix with no flags byte. Used exclusively for
// the DH handshake messages, which predate any flags byte because no
// Package exists yet.
func WriteRaw(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadRaw reads one handshake-framed message: a 4-byte length prefix
// followed by exactly that many bytes.
func ReadRaw(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, ErrClosed
		}
		return nil, ErrProtocol
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, ErrProtocol
		}
	}
	return data, nil
}
