// Package crypto implements the vault's key derivation and authenticated
// encryption primitives: PBKDF2-HMAC-SHA256 key stretching over machine
// identity material, and AES-256-GCM with the nonce and authentication tag
// surfaced separately so the container codec can lay them out on disk.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// IVSize is the GCM nonce length in bytes.
	IVSize = 12

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	// Iterations is the fixed PBKDF2 iteration count. Changing it breaks
	// decryption of existing vaults, so it is part of the on-disk contract.
	Iterations = 100_000
)

// ErrAuthFailed is returned when decryption fails authentication: the key
// is wrong or the ciphertext/tag was modified. The two cases are
// deliberately indistinguishable.
var ErrAuthFailed = errors.New("authentication failed")

// SecretMaterial builds the low-entropy input for key derivation by
// hashing the machine identifier together with a derivation version tag.
// The tag separates key schedules across derivation scheme revisions so a
// vault written under one scheme never authenticates under another.
func SecretMaterial(machineID, versionTag string) []byte {
	sum := sha256.Sum256([]byte(machineID + versionTag))
	return sum[:]
}

// DeriveKey stretches secret material into a 32-byte AES key using
// PBKDF2-HMAC-SHA256 with the fixed iteration count. The salt comes from
// the vault header and is generated once per vault.
func DeriveKey(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, Iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext under key with AES-256-GCM and a fresh random
// nonce. The nonce, authentication tag, and ciphertext are returned
// separately to match the vault container layout. Nonce reuse under one
// key is forbidden; every call draws a new nonce from crypto/rand.
func Encrypt(plaintext, key []byte) (iv, tag, ciphertext []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, nil, fmt.Errorf("invalid key length %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	iv = make([]byte, IVSize)
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it back out.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]
	return iv, tag, ciphertext, nil
}

// Decrypt opens ciphertext sealed by Encrypt. Any tampering with the
// nonce, tag, or ciphertext, or a key derived from the wrong machine
// identity, yields ErrAuthFailed rather than silent garbage.
func Decrypt(iv, tag, ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid nonce length %d", len(iv))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("invalid tag length %d", len(tag))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Checksum returns the SHA-256 digest of data, used by audit logging to
// reference payloads without recording them.
func Checksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}
