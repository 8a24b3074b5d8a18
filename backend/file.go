package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/craftlabs/credvault/audit"
	"github.com/craftlabs/credvault/credential"
	"github.com/craftlabs/credvault/internal/container"
	"github.com/craftlabs/credvault/internal/crypto"
	"github.com/craftlabs/credvault/internal/machineid"
)

const (
	filePermissions os.FileMode = 0600
	dirPermissions  os.FileMode = 0700

	// Derivation tags separate key schedules across scheme revisions.
	// v2 derives from the stable machine identifier; v1 derived from the
	// legacy hostname-salted identifier and survives only for migration.
	currentDerivationTag = "craft-credentials-v2"
	legacyDerivationTag  = "craft-credentials-v1"
)

// FileBackend stores all credentials in one encrypted container file.
//
// The file is bound to the machine: its AES key is stretched from the
// stable machine identifier and the salt in the container header, so no
// master password is ever requested. The decrypted store, the derived key
// (in a memguard enclave), and the salt are cached for the process
// lifetime; every mutation re-encrypts the whole store with a fresh IV
// and rewrites the file atomically.
//
// Load state machine:
//
//	not loaded -> no file               -> empty store
//	not loaded -> decrypt (current key) -> loaded
//	not loaded -> decrypt (legacy key)  -> re-encrypt under current key -> loaded
//	not loaded -> both decrypts fail    -> delete file -> empty store
//
// Corruption is never surfaced to readers. An unreadable vault is deleted
// so future writes start clean: having the user re-enter a secret beats a
// permanently stuck vault.
type FileBackend struct {
	path  string
	audit audit.Logger

	// Identity resolvers, injectable for tests.
	machineID       func() string
	legacyMachineID func() string

	mu         sync.Mutex
	loaded     bool
	store      *credential.Store
	keyEnclave *memguard.Enclave
	salt       []byte
}

// FileOption customizes a FileBackend.
type FileOption func(*FileBackend)

// WithAudit attaches an audit logger.
func WithAudit(logger audit.Logger) FileOption {
	return func(b *FileBackend) {
		if logger != nil {
			b.audit = logger
		}
	}
}

// WithMachineID overrides the stable machine identity resolver.
func WithMachineID(resolve func() string) FileOption {
	return func(b *FileBackend) { b.machineID = resolve }
}

// WithLegacyMachineID overrides the legacy machine identity resolver.
func WithLegacyMachineID(resolve func() string) FileOption {
	return func(b *FileBackend) { b.legacyMachineID = resolve }
}

// NewFileBackend creates the encrypted-file backend for the vault at path.
// Nothing is read from disk until the first operation.
func NewFileBackend(path string, opts ...FileOption) *FileBackend {
	b := &FileBackend{
		path:            path,
		audit:           audit.NewNoOpLogger(),
		machineID:       machineid.Resolve,
		legacyMachineID: machineid.ResolveLegacy,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *FileBackend) Name() string  { return "encrypted-file" }
func (b *FileBackend) Priority() int { return PriorityEncryptedFile }

// Available is always true: local disk is assumed present.
func (b *FileBackend) Available() bool { return true }

// Get returns the credential stored under id, or nil when absent.
// Corruption encountered during the lazy load degrades to "absent".
func (b *FileBackend) Get(id credential.ID) (*credential.StoredCredential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	cred, ok := b.store.Credentials[id.Key()]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// Set stores the credential and synchronously re-encrypts the vault.
func (b *FileBackend) Set(id credential.ID, cred credential.StoredCredential) error {
	if err := id.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoadedLocked(); err != nil {
		return err
	}
	b.store.Credentials[id.Key()] = cred
	if err := b.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist vault: %w", err)
	}
	return nil
}

// Delete removes the credential if present and reports whether it was.
func (b *FileBackend) Delete(id credential.ID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoadedLocked(); err != nil {
		return false, err
	}
	key := id.Key()
	if _, ok := b.store.Credentials[key]; !ok {
		return false, nil
	}
	delete(b.store.Credentials, key)
	if err := b.persistLocked(); err != nil {
		return false, fmt.Errorf("failed to persist vault: %w", err)
	}
	return true, nil
}

// List returns the identity of every stored credential, sorted by key for
// deterministic output.
func (b *FileBackend) List() ([]credential.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.store.Credentials))
	for key := range b.store.Credentials {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ids := make([]credential.ID, 0, len(keys))
	for _, key := range keys {
		id, err := credential.ParseKey(key)
		if err != nil {
			// A key we cannot decode is dead weight from a newer or
			// damaged store entry; skip it rather than fail the listing.
			b.logAudit("list_skip_bad_key", false, map[string]interface{}{
				"reason": err.Error(),
			})
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close wipes the cached key material and decrypted store.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCachesLocked()
	b.loaded = false
	return nil
}

// ensureLoadedLocked drives the load state machine. It is called with the
// lock held by every operation; after it returns nil, b.store is usable.
func (b *FileBackend) ensureLoadedLocked() error {
	if b.loaded {
		return nil
	}

	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		b.store = credential.NewStore()
		b.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read vault file: %w", err)
	}

	parsed, ok := container.Parse(raw)
	if !ok {
		b.recoverCorruptLocked("invalid_container")
		return nil
	}

	// Current derivation scheme first: after migration this is the only
	// one that authenticates.
	if store, key, ok := b.tryDecrypt(parsed, b.machineID(), currentDerivationTag); ok {
		b.store = store
		b.salt = append([]byte(nil), parsed.Salt...)
		b.keyEnclave = memguard.NewEnclave(key)
		b.loaded = true
		return nil
	}

	// Legacy scheme: readable exactly once, then transparently
	// re-encrypted under the current derivation with a fresh salt.
	if store, key, ok := b.tryDecrypt(parsed, b.legacyMachineID(), legacyDerivationTag); ok {
		memguard.WipeBytes(key)
		b.store = store
		b.salt = nil
		b.keyEnclave = nil
		b.loaded = true
		if err := b.persistLocked(); err != nil {
			// The legacy copy is still on disk and still readable, so
			// migration simply retries on the next load.
			b.loaded = false
			b.store = nil
			return fmt.Errorf("failed to re-encrypt migrated vault: %w", err)
		}
		b.logAudit("vault_migrated", true, map[string]interface{}{
			"credentials": len(b.store.Credentials),
		})
		return nil
	}

	b.recoverCorruptLocked("authentication_failed")
	return nil
}

// tryDecrypt derives a key for one identity/scheme pair and attempts an
// authenticated decrypt plus JSON decode. ok=false covers wrong key,
// tampered data, and an undecodable payload alike.
func (b *FileBackend) tryDecrypt(parsed *container.Parsed, machineID, derivationTag string) (*credential.Store, []byte, bool) {
	key := crypto.DeriveKey(crypto.SecretMaterial(machineID, derivationTag), parsed.Salt)

	plaintext, err := crypto.Decrypt(parsed.IV, parsed.Tag, parsed.Ciphertext, key)
	if err != nil {
		memguard.WipeBytes(key)
		return nil, nil, false
	}

	var store credential.Store
	if err := json.Unmarshal(plaintext, &store); err != nil {
		memguard.WipeBytes(key)
		return nil, nil, false
	}
	memguard.WipeBytes(plaintext)
	if store.Credentials == nil {
		store.Credentials = make(map[string]credential.StoredCredential)
	}
	return &store, key, true
}

// recoverCorruptLocked handles an unreadable vault: log it, delete the
// file, drop every cache, and continue with an empty store. Readers see
// "no credentials found", never an error.
func (b *FileBackend) recoverCorruptLocked(reason string) {
	b.logAudit("vault_corrupt_recovered", false, map[string]interface{}{
		"reason": reason,
	})

	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Deletion failing (permissions, races) still leaves the caches
		// clean; the next write will overwrite the bad file anyway.
		b.logAudit("vault_corrupt_delete_failed", false, map[string]interface{}{
			"error": err.Error(),
		})
	}

	b.resetCachesLocked()
	b.store = credential.NewStore()
	b.loaded = true
}

func (b *FileBackend) resetCachesLocked() {
	b.store = nil
	b.keyEnclave = nil
	if b.salt != nil {
		memguard.WipeBytes(b.salt)
		b.salt = nil
	}
}

// persistLocked re-encrypts the full store and atomically rewrites the
// vault file. The salt is generated once per vault; a fresh IV is drawn
// on every write inside the container codec.
func (b *FileBackend) persistLocked() error {
	if b.salt == nil {
		salt, err := container.NewSalt()
		if err != nil {
			return err
		}
		b.salt = salt
		b.keyEnclave = nil // salt changed, cached key is stale
	}
	if b.keyEnclave == nil {
		key := crypto.DeriveKey(crypto.SecretMaterial(b.machineID(), currentDerivationTag), b.salt)
		b.keyEnclave = memguard.NewEnclave(key)
	}

	b.store.Metadata.UpdatedAt = time.Now().UTC()
	plaintext, err := json.Marshal(b.store)
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}
	defer memguard.WipeBytes(plaintext)

	keyBuffer, err := b.keyEnclave.Open()
	if err != nil {
		return fmt.Errorf("failed to access vault key: %w", err)
	}
	defer keyBuffer.Destroy()

	raw, err := container.Serialize(plaintext, keyBuffer.Bytes(), b.salt)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(b.path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	return writeSecureFile(b.path, raw, filePermissions)
}

func (b *FileBackend) logAudit(action string, success bool, metadata map[string]interface{}) {
	// Audit failures never fail the credential operation they describe.
	_ = b.audit.Log(action, success, metadata)
}

// writeSecureFile writes data via a temp file in the target directory and
// renames it into place, so a crash mid-write never leaves a truncated
// vault behind.
func writeSecureFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace vault file: %w", err)
	}
	return nil
}
