package credvault

import (
	"github.com/craftlabs/credvault/credential"
)

// OAuthTokens is the Anthropic OAuth bundle produced by the sign-in flow.
type OAuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresAt is Unix milliseconds; zero means no expiry is known.
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Source    string `json:"source,omitempty"`
}

// WorkspaceOAuth is a per-workspace OAuth credential bundle.
type WorkspaceOAuth struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
}

// The typed accessors below are thin fixed-shape projections over
// Get/Set/Delete. They hold no state of their own.

// GetAPIKey returns the stored Anthropic API key, or "" when absent.
func (m *Manager) GetAPIKey() (string, error) {
	cred, err := m.Get(credential.ID{Type: credential.TypeAPIKey})
	if err != nil || cred == nil {
		return "", err
	}
	return cred.Value, nil
}

// SetAPIKey stores the Anthropic API key.
func (m *Manager) SetAPIKey(value string) error {
	return m.Set(credential.ID{Type: credential.TypeAPIKey}, credential.StoredCredential{
		Value: value,
	})
}

// DeleteAPIKey removes the stored API key, reporting whether one existed.
func (m *Manager) DeleteAPIKey() (bool, error) {
	return m.Delete(credential.ID{Type: credential.TypeAPIKey})
}

// GetOAuthTokens returns the Anthropic OAuth bundle, or nil when absent.
func (m *Manager) GetOAuthTokens() (*OAuthTokens, error) {
	cred, err := m.Get(credential.ID{Type: credential.TypeOAuth})
	if err != nil || cred == nil {
		return nil, err
	}
	return &OAuthTokens{
		AccessToken:  cred.Value,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		Source:       cred.Source,
	}, nil
}

// SetOAuthTokens stores the Anthropic OAuth bundle.
func (m *Manager) SetOAuthTokens(tokens OAuthTokens) error {
	return m.Set(credential.ID{Type: credential.TypeOAuth}, credential.StoredCredential{
		Value:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Source:       tokens.Source,
	})
}

// DeleteOAuthTokens removes the Anthropic OAuth bundle.
func (m *Manager) DeleteOAuthTokens() (bool, error) {
	return m.Delete(credential.ID{Type: credential.TypeOAuth})
}

// GetWorkspaceOAuth returns the OAuth bundle for one workspace/source
// pair, or nil when absent. sourceID may be empty for the workspace's
// default source.
func (m *Manager) GetWorkspaceOAuth(workspaceID, sourceID string) (*WorkspaceOAuth, error) {
	cred, err := m.Get(credential.ID{
		Type:        credential.TypeWorkspaceOAuth,
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
	})
	if err != nil || cred == nil {
		return nil, err
	}
	return &WorkspaceOAuth{
		AccessToken:  cred.Value,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		ClientID:     cred.ClientID,
		TokenType:    cred.TokenType,
	}, nil
}

// SetWorkspaceOAuth stores the OAuth bundle for one workspace/source pair.
func (m *Manager) SetWorkspaceOAuth(workspaceID, sourceID string, tokens WorkspaceOAuth) error {
	return m.Set(credential.ID{
		Type:        credential.TypeWorkspaceOAuth,
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
	}, credential.StoredCredential{
		Value:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		ClientID:     tokens.ClientID,
		TokenType:    tokens.TokenType,
	})
}

// DeleteWorkspaceCredentials bulk-deletes every credential belonging to
// the workspace, across all backends, and returns how many identities
// were removed.
func (m *Manager) DeleteWorkspaceCredentials(workspaceID string) (int, error) {
	ids, err := m.List(&credential.Filter{WorkspaceID: workspaceID})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		deleted, err := m.Delete(id)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}
