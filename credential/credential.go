// Package credential defines the data model shared by the credential
// manager and its storage backends: structured credential identifiers,
// the secret payload shape, and the decrypted in-memory store that is
// persisted inside the encrypted vault container.
package credential

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ExpiryBuffer is subtracted from a credential's expiry time when deciding
// whether it is still usable. A token that expires within the buffer is
// treated as already expired so callers refresh before it lapses mid-request.
const ExpiryBuffer = 5 * time.Minute

// Type classifies the kind of secret held in a credential slot.
type Type string

const (
	// TypeAPIKey is a plain Anthropic API key.
	TypeAPIKey Type = "anthropic_api_key"

	// TypeOAuth is the Anthropic OAuth token bundle (access token,
	// refresh token, expiry) produced by the sign-in flow.
	TypeOAuth Type = "anthropic_oauth"

	// TypeWorkspaceOAuth is a per-workspace OAuth bundle, keyed by the
	// workspace it belongs to and optionally the source that issued it.
	TypeWorkspaceOAuth Type = "workspace_oauth"
)

// ID identifies one secret slot in the vault.
//
// Only Type is mandatory; the remaining fields narrow the slot to a
// workspace, a source within that workspace, or a caller-chosen name.
// An ID maps bijectively to a flat string key via Key and ParseKey:
// ParseKey(id.Key()) == id for every valid ID.
type ID struct {
	Type        Type   `json:"type"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	SourceID    string `json:"sourceId,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Key encodes the ID as the flat account key used inside the store map.
// Fields are percent-escaped so separator characters in workspace IDs or
// names cannot collide with the key syntax.
func (id ID) Key() string {
	parts := []string{"type=" + url.QueryEscape(string(id.Type))}
	if id.WorkspaceID != "" {
		parts = append(parts, "workspace="+url.QueryEscape(id.WorkspaceID))
	}
	if id.SourceID != "" {
		parts = append(parts, "source="+url.QueryEscape(id.SourceID))
	}
	if id.Name != "" {
		parts = append(parts, "name="+url.QueryEscape(id.Name))
	}
	return strings.Join(parts, "&")
}

// ParseKey decodes a flat account key produced by Key back into an ID.
func ParseKey(key string) (ID, error) {
	var id ID
	if key == "" {
		return id, fmt.Errorf("empty credential key")
	}
	for _, part := range strings.Split(key, "&") {
		field, value, found := strings.Cut(part, "=")
		if !found {
			return ID{}, fmt.Errorf("malformed credential key segment %q", part)
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return ID{}, fmt.Errorf("malformed credential key value %q: %w", value, err)
		}
		switch field {
		case "type":
			id.Type = Type(decoded)
		case "workspace":
			id.WorkspaceID = decoded
		case "source":
			id.SourceID = decoded
		case "name":
			id.Name = decoded
		default:
			return ID{}, fmt.Errorf("unknown credential key field %q", field)
		}
	}
	if id.Type == "" {
		return ID{}, fmt.Errorf("credential key missing type")
	}
	return id, nil
}

// Validate checks that the ID can be stored and round-tripped.
func (id ID) Validate() error {
	if id.Type == "" {
		return fmt.Errorf("credential type is required")
	}
	return nil
}

// StoredCredential is the secret payload for one slot. Value carries the
// primary secret (API key or access token); the remaining fields are
// populated per credential type. Instances must never be logged or written
// outside the encrypted container.
type StoredCredential struct {
	Value        string `json:"value"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresAt is Unix milliseconds; zero means the credential never expires.
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Source    string `json:"source,omitempty"`
	TokenType string `json:"tokenType,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
}

// IsExpired reports whether the credential's expiry (less the refresh
// buffer) has passed. Credentials without an expiry never expire.
func (c StoredCredential) IsExpired() bool {
	if c.ExpiresAt == 0 {
		return false
	}
	expiry := time.UnixMilli(c.ExpiresAt).Add(-ExpiryBuffer)
	return time.Now().After(expiry)
}

// StoreVersion is the logical schema version written into new stores.
const StoreVersion = 1

// Store is the decrypted in-memory vault: every credential keyed by its
// flat account key, plus bookkeeping metadata. Exactly one logical Store
// exists per vault file; it is created on first write, cached for the
// process lifetime, and re-encrypted wholesale on every mutation.
type Store struct {
	Version     int                         `json:"version"`
	Credentials map[string]StoredCredential `json:"credentials"`
	Metadata    StoreMetadata               `json:"metadata"`
}

// StoreMetadata records store lifecycle timestamps.
type StoreMetadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewStore returns an empty store ready for its first credential.
func NewStore() *Store {
	now := time.Now().UTC()
	return &Store{
		Version:     StoreVersion,
		Credentials: make(map[string]StoredCredential),
		Metadata: StoreMetadata{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Filter narrows List results. Zero-value fields are ignored; set fields
// must all match (conjunctive).
type Filter struct {
	Type        Type
	WorkspaceID string
	Name        string
}

// Matches reports whether the ID satisfies every set filter field.
func (f Filter) Matches(id ID) bool {
	if f.Type != "" && id.Type != f.Type {
		return false
	}
	if f.WorkspaceID != "" && id.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.Name != "" && id.Name != f.Name {
		return false
	}
	return true
}
