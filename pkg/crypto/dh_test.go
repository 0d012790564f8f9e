package crypto

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

// TestHandshakeInterop runs both sides of a key agreement in-process:
// the two sides must arrive at the same record key, and a frame
// encrypted by one must decrypt on the other.
func TestHandshakeInterop(t *testing.T) {
	server, err := NewServerHandshake()
	if err != nil {
		t.Fatalf("NewServerHandshake: %v", err)
	}

	params := server.Params()
	client, err := NewClientHandshake(params.P, params.G)
	if err != nil {
		t.Fatalf("NewClientHandshake: %v", err)
	}

	if err := client.DeriveShared(server.PublicValue()); err != nil {
		t.Fatalf("client DeriveShared: %v", err)
	}
	if err := server.DeriveShared(client.PublicValue()); err != nil {
		t.Fatalf("server DeriveShared: %v", err)
	}

	if !bytes.Equal(server.shared, client.shared) {
		t.Fatal("shared secrets differ")
	}

	serverCipher, err := server.Cipher(ProfileCBC)
	if err != nil {
		t.Fatalf("server Cipher: %v", err)
	}
	clientCipher, err := client.Cipher(ProfileCBC)
	if err != nil {
		t.Fatalf("client Cipher: %v", err)
	}

	plaintext := []byte(`{"transaction":"echo"}`)
	ct, err := serverCipher.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := clientCipher.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("cross-side decrypt mismatch: got %q", pt)
	}
}

func TestDefaultParamsGroup14(t *testing.T) {
	params := DefaultParams()
	if params.P.BitLen() != 2048 {
		t.Errorf("prime bit length = %d, want 2048", params.P.BitLen())
	}
	if params.G.Int64() != 2 {
		t.Errorf("generator = %v, want 2", params.G)
	}
	// DefaultParams must hand out copies, not the shared constant.
	params.P.SetInt64(0)
	if DefaultParams().P.BitLen() != 2048 {
		t.Error("mutating a returned prime corrupted the shared constant")
	}
}

func TestDeriveSharedRejectsBadPublicValues(t *testing.T) {
	params := DefaultParams()
	bad := []*big.Int{
		nil,
		big.NewInt(0),
		big.NewInt(-1),
		new(big.Int).Set(params.P),
		new(big.Int).Add(params.P, big.NewInt(1)),
	}

	for _, pub := range bad {
		hs, err := NewServerHandshake()
		if err != nil {
			t.Fatalf("NewServerHandshake: %v", err)
		}
		if err := hs.DeriveShared(pub); !errors.Is(err, ErrInvalidPublicValue) {
			t.Errorf("DeriveShared(%v): got %v, want ErrInvalidPublicValue", pub, err)
		}
	}
}

func TestHandshakeStateOrdering(t *testing.T) {
	hs, err := NewServerHandshake()
	if err != nil {
		t.Fatalf("NewServerHandshake: %v", err)
	}

	// Cipher before DeriveShared must fail.
	if _, err := hs.Cipher(ProfileCBC); !errors.Is(err, ErrCryptoState) {
		t.Errorf("Cipher before DeriveShared: got %v, want ErrCryptoState", err)
	}

	peer, err := NewClientHandshake(hs.Params().P, hs.Params().G)
	if err != nil {
		t.Fatalf("NewClientHandshake: %v", err)
	}
	if err := hs.DeriveShared(peer.PublicValue()); err != nil {
		t.Fatalf("DeriveShared: %v", err)
	}

	// A second DeriveShared on a completed handshake must fail.
	if err := hs.DeriveShared(peer.PublicValue()); !errors.Is(err, ErrCryptoState) {
		t.Errorf("second DeriveShared: got %v, want ErrCryptoState", err)
	}
}

func TestHandshakeFreshExponents(t *testing.T) {
	a, err := NewServerHandshake()
	if err != nil {
		t.Fatalf("NewServerHandshake: %v", err)
	}
	b, err := NewServerHandshake()
	if err != nil {
		t.Fatalf("NewServerHandshake: %v", err)
	}
	if a.PublicValue().Cmp(b.PublicValue()) == 0 {
		t.Error("two handshakes produced the same public value")
	}
}
