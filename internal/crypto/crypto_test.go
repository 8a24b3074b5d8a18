package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	cases := [][]byte{
		[]byte("hello"),
		[]byte(`{"version":1,"credentials":{}}`),
		[]byte("unicode: こんにちは"),
		bytes.Repeat([]byte{0xAB}, 64*1024),
		{},
	}

	for i, plaintext := range cases {
		iv, tag, ciphertext, err := Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("case %d: encrypt failed: %v", i, err)
		}
		if len(iv) != IVSize {
			t.Errorf("case %d: iv length = %d, want %d", i, len(iv), IVSize)
		}
		if len(tag) != TagSize {
			t.Errorf("case %d: tag length = %d, want %d", i, len(tag), TagSize)
		}
		if len(ciphertext) != len(plaintext) {
			t.Errorf("case %d: ciphertext length = %d, want %d", i, len(ciphertext), len(plaintext))
		}

		decrypted, err := Decrypt(iv, tag, ciphertext, key)
		if err != nil {
			t.Fatalf("case %d: decrypt failed: %v", i, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("case %d: plaintext mismatch", i)
		}
	}
}

func TestEncryptFreshIVPerCall(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same input")

	iv1, _, ct1, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	iv2, _, ct2, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if bytes.Equal(iv1, iv2) {
		t.Error("IV reused across encryptions")
	}
	if bytes.Equal(ct1, ct2) {
		t.Error("identical ciphertext for identical plaintext; IV not effective")
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	key := testKey(t)
	iv, tag, ciphertext, err := Encrypt([]byte("sensitive payload"), key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	flipBit := func(data []byte, i int) []byte {
		out := append([]byte(nil), data...)
		out[i] ^= 0x01
		return out
	}

	if _, err = Decrypt(iv, tag, flipBit(ciphertext, 0), key); err != ErrAuthFailed {
		t.Errorf("tampered ciphertext: got %v, want ErrAuthFailed", err)
	}
	if _, err = Decrypt(iv, flipBit(tag, TagSize-1), ciphertext, key); err != ErrAuthFailed {
		t.Errorf("tampered tag: got %v, want ErrAuthFailed", err)
	}
	if _, err = Decrypt(flipBit(iv, 3), tag, ciphertext, key); err != ErrAuthFailed {
		t.Errorf("tampered IV: got %v, want ErrAuthFailed", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	iv, tag, ciphertext, err := Encrypt([]byte("payload"), testKey(t))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err = Decrypt(iv, tag, ciphertext, testKey(t)); err != ErrAuthFailed {
		t.Errorf("wrong key: got %v, want ErrAuthFailed", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, 32)
	secret := SecretMaterial("machine-a", "tag-v2")

	key1 := DeriveKey(secret, salt)
	key2 := DeriveKey(secret, salt)
	if !bytes.Equal(key1, key2) {
		t.Error("derivation is not deterministic")
	}
	if len(key1) != KeySize {
		t.Errorf("key length = %d, want %d", len(key1), KeySize)
	}
}

func TestDeriveKeySeparation(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, 32)
	otherSalt := bytes.Repeat([]byte{0x43}, 32)

	base := DeriveKey(SecretMaterial("machine-a", "tag-v2"), salt)

	if bytes.Equal(base, DeriveKey(SecretMaterial("machine-b", "tag-v2"), salt)) {
		t.Error("different machine IDs produced the same key")
	}
	if bytes.Equal(base, DeriveKey(SecretMaterial("machine-a", "tag-v1"), salt)) {
		t.Error("different version tags produced the same key")
	}
	if bytes.Equal(base, DeriveKey(SecretMaterial("machine-a", "tag-v2"), otherSalt)) {
		t.Error("different salts produced the same key")
	}
}

func TestEncryptRejectsBadKey(t *testing.T) {
	if _, _, _, err := Encrypt([]byte("x"), make([]byte, 16)); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := Decrypt(make([]byte, IVSize), make([]byte, TagSize), nil, make([]byte, 16)); err == nil {
		t.Error("expected error for short key")
	}
}
