package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func sharedSecret() []byte {
	z := make([]byte, 256)
	for i := range z {
		z[i] = byte(i * 7)
	}
	return z
}

func TestCipherProfilesRoundtrip(t *testing.T) {
	profiles := []struct {
		name    string
		profile Profile
	}{
		{"cbc", ProfileCBC},
		{"aead", ProfileAEAD},
		{"chacha", ProfileChaCha},
	}

	plaintext := []byte(`{"transaction":"echo","content":"aGVsbG8="}`)

	for _, tt := range profiles {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCipher(tt.profile, sharedSecret())
			if err != nil {
				t.Fatalf("NewCipher: %v", err)
			}

			ct, err := c.Encrypt(plaintext)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Contains(ct, plaintext) {
				t.Error("ciphertext contains the plaintext")
			}

			pt, err := c.Decrypt(ct)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(pt, plaintext) {
				t.Errorf("roundtrip mismatch: got %q", pt)
			}
		})
	}
}

func TestCipherProfilesDeriveDistinctKeys(t *testing.T) {
	z := sharedSecret()
	cbc, err := NewCipher(ProfileCBC, z)
	if err != nil {
		t.Fatalf("NewCipher(cbc): %v", err)
	}
	chacha, err := NewCipher(ProfileChaCha, z)
	if err != nil {
		t.Fatalf("NewCipher(chacha): %v", err)
	}
	if bytes.Equal(cbc.aesKey, chacha.aesKey) {
		t.Error("profiles derived the same key from one shared secret")
	}
}

func TestAEADProfilesRejectTampering(t *testing.T) {
	for _, profile := range []Profile{ProfileAEAD, ProfileChaCha} {
		c, err := NewCipher(profile, sharedSecret())
		if err != nil {
			t.Fatalf("NewCipher: %v", err)
		}

		ct, err := c.Encrypt([]byte("tamper-evident"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}

		// Unlike CBC, every single-byte flip must be rejected.
		for i := range ct {
			tampered := make([]byte, len(ct))
			copy(tampered, ct)
			tampered[i] ^= 0x01
			if _, err := c.Decrypt(tampered); err == nil {
				t.Fatalf("profile %d accepted ciphertext tampered at byte %d", profile, i)
			}
		}
	}
}

func TestNewCipherUnknownProfile(t *testing.T) {
	if _, err := NewCipher(Profile(99), sharedSecret()); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("got %v, want ErrUnknownProfile", err)
	}
}
