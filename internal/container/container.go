// Package container implements the vault's fixed binary file format.
//
// On-disk layout (little-endian):
//
//	offset 0   len 8   magic "CRAFT01\0"
//	offset 8   len 4   flags (uint32, reserved, always 0)
//	offset 12  len 32  salt (random, generated once per vault)
//	offset 44  len 20  reserved
//	offset 64  len 12  IV (random per write)
//	offset 76  len 16  authentication tag
//	offset 92  len N   ciphertext (AES-256-GCM of the JSON credential store)
//
// Parse never returns an error for malformed input: any structural defect
// yields ok=false so the caller can run corruption recovery instead of
// propagating a hard failure.
package container

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/craftlabs/credvault/internal/crypto"
)

const (
	// HeaderSize is the fixed container header length.
	HeaderSize = 64

	// SaltSize is the derivation salt length stored in the header.
	SaltSize = 32

	magicSize    = 8
	flagsOffset  = 8
	saltOffset   = 12
	reservedSize = 20

	// MinSize is the smallest structurally valid container: header plus
	// IV and tag with an empty ciphertext.
	MinSize = HeaderSize + crypto.IVSize + crypto.TagSize
)

// magic identifies a Craft credential vault file. A file that does not
// start with these bytes is not a vault, whatever its extension says.
var magic = [magicSize]byte{'C', 'R', 'A', 'F', 'T', '0', '1', 0}

// Parsed holds the fields extracted from a structurally valid container.
// The ciphertext has not been authenticated yet; only decryption proves
// the file is genuine.
type Parsed struct {
	Flags      uint32
	Salt       []byte
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// NewSalt returns a fresh random derivation salt for a new vault.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Serialize encrypts the JSON-serialized store under key with a fresh
// random IV and assembles the full container: header, IV, tag, ciphertext.
func Serialize(plaintext, key, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("invalid salt length %d", len(salt))
	}

	iv, tag, ciphertext, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt store: %w", err)
	}

	out := make([]byte, 0, HeaderSize+len(iv)+len(tag)+len(ciphertext))

	header := make([]byte, HeaderSize)
	copy(header[:magicSize], magic[:])
	binary.LittleEndian.PutUint32(header[flagsOffset:flagsOffset+4], 0)
	copy(header[saltOffset:saltOffset+SaltSize], salt)
	// Bytes 44..63 stay zero (reserved).

	out = append(out, header...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Parse validates the container structure and splits out its sections.
// It returns ok=false for anything that is not a well-formed container:
// too short, wrong magic, or a truncated encrypted section.
func Parse(raw []byte) (*Parsed, bool) {
	if len(raw) < MinSize {
		return nil, false
	}
	if !bytes.Equal(raw[:magicSize], magic[:]) {
		return nil, false
	}

	p := &Parsed{
		Flags:      binary.LittleEndian.Uint32(raw[flagsOffset : flagsOffset+4]),
		Salt:       raw[saltOffset : saltOffset+SaltSize],
		IV:         raw[HeaderSize : HeaderSize+crypto.IVSize],
		Tag:        raw[HeaderSize+crypto.IVSize : HeaderSize+crypto.IVSize+crypto.TagSize],
		Ciphertext: raw[MinSize:],
	}
	return p, true
}
