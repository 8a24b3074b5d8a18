package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	"github.com/craftlabs/credvault/credential"
)

// keychainService is the service name credentials are filed under in the
// OS keychain (macOS Keychain, Windows Credential Manager, Secret
// Service on Linux).
const keychainService = "com.craftlabs.craft.credentials"

// indexAccount holds the JSON list of stored account keys. The keyring
// API has no enumeration, so List is backed by this explicit index.
const indexAccount = "__index__"

// KeychainBackend stores each credential as one OS keychain item via
// go-keyring. The implementation is complete but intentionally disabled:
// Available always reports false, so the manager never selects it. It is
// kept wired so enabling OS-keychain storage later is a one-line change.
type KeychainBackend struct {
	enabled bool
}

// NewKeychainBackend returns the disabled keychain backend.
func NewKeychainBackend() *KeychainBackend {
	return &KeychainBackend{enabled: false}
}

func (k *KeychainBackend) Name() string  { return "os-keychain" }
func (k *KeychainBackend) Priority() int { return PriorityKeychain }

// Available is false while the backend stays disabled.
func (k *KeychainBackend) Available() bool { return k.enabled }

func (k *KeychainBackend) Get(id credential.ID) (*credential.StoredCredential, error) {
	if !k.enabled {
		return nil, ErrUnavailable
	}
	secret, err := keyring.Get(keychainService, id.Key())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain read failed: %w", err)
	}
	var cred credential.StoredCredential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return nil, fmt.Errorf("keychain item undecodable: %w", err)
	}
	return &cred, nil
}

func (k *KeychainBackend) Set(id credential.ID, cred credential.StoredCredential) error {
	if !k.enabled {
		return ErrUnavailable
	}
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to serialize credential: %w", err)
	}
	if err := keyring.Set(keychainService, id.Key(), string(payload)); err != nil {
		return fmt.Errorf("keychain write failed: %w", err)
	}
	return k.updateIndex(id.Key(), true)
}

func (k *KeychainBackend) Delete(id credential.ID) (bool, error) {
	if !k.enabled {
		return false, ErrUnavailable
	}
	err := keyring.Delete(keychainService, id.Key())
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keychain delete failed: %w", err)
	}
	return true, k.updateIndex(id.Key(), false)
}

func (k *KeychainBackend) List() ([]credential.ID, error) {
	if !k.enabled {
		return nil, ErrUnavailable
	}
	keys, err := k.loadIndex()
	if err != nil {
		return nil, err
	}
	ids := make([]credential.ID, 0, len(keys))
	for _, key := range keys {
		id, err := credential.ParseKey(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (k *KeychainBackend) loadIndex() ([]string, error) {
	raw, err := keyring.Get(keychainService, indexAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keychain index read failed: %w", err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("keychain index undecodable: %w", err)
	}
	return keys, nil
}

func (k *KeychainBackend) updateIndex(key string, present bool) error {
	keys, err := k.loadIndex()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(keys)+1)
	for _, existing := range keys {
		set[existing] = true
	}
	if present {
		set[key] = true
	} else {
		delete(set, key)
	}
	updated := make([]string, 0, len(set))
	for existing := range set {
		updated = append(updated, existing)
	}
	sort.Strings(updated)
	payload, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to serialize keychain index: %w", err)
	}
	if err := keyring.Set(keychainService, indexAccount, string(payload)); err != nil {
		return fmt.Errorf("keychain index write failed: %w", err)
	}
	return nil
}
