package credential

import (
	"testing"
	"time"
)

func TestKeyRoundTrip(t *testing.T) {
	ids := []ID{
		{Type: TypeAPIKey},
		{Type: TypeOAuth},
		{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-1"},
		{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-1", SourceID: "src-9"},
		{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-1", SourceID: "src-9", Name: "primary"},
		{Type: "custom", Name: "with spaces and & = symbols"},
		{Type: "custom", WorkspaceID: "a&b=c", Name: "100%"},
		{Type: "custom", WorkspaceID: "日本語"},
	}

	for _, id := range ids {
		key := id.Key()
		decoded, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q) failed: %v", key, err)
		}
		if decoded != id {
			t.Errorf("round trip mismatch for %q:\n  in:  %+v\n  out: %+v", key, id, decoded)
		}
	}
}

func TestKeyDistinguishesIDs(t *testing.T) {
	a := ID{Type: TypeWorkspaceOAuth, WorkspaceID: "ws", Name: "n"}
	b := ID{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-n"}
	if a.Key() == b.Key() {
		t.Errorf("distinct ids share key %q", a.Key())
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"workspace=no-type",
		"type=a&bogus=field",
		"noequals",
		"type=%zz",
	}
	for _, key := range cases {
		if _, err := ParseKey(key); err == nil {
			t.Errorf("ParseKey(%q) expected error", key)
		}
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"NoExpiry", 0, false},
		{"InsideBuffer", now.Add(4 * time.Minute).UnixMilli(), true},
		{"OutsideBuffer", now.Add(6 * time.Minute).UnixMilli(), false},
		{"AlreadyPast", now.Add(-time.Hour).UnixMilli(), true},
		{"FarFuture", now.Add(24 * time.Hour).UnixMilli(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := StoredCredential{Value: "v", ExpiresAt: tt.expiresAt}
			if got := c.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	id := ID{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-1", Name: "primary"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"Empty", Filter{}, true},
		{"TypeOnly", Filter{Type: TypeWorkspaceOAuth}, true},
		{"WrongType", Filter{Type: TypeAPIKey}, false},
		{"TypeAndWorkspace", Filter{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-1"}, true},
		{"WrongWorkspace", Filter{WorkspaceID: "ws-2"}, false},
		{"AllFields", Filter{Type: TypeWorkspaceOAuth, WorkspaceID: "ws-1", Name: "primary"}, true},
		{"NameMismatch", Filter{Name: "secondary"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(id); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store.Version != StoreVersion {
		t.Errorf("Version = %d, want %d", store.Version, StoreVersion)
	}
	if store.Credentials == nil {
		t.Error("Credentials map not initialized")
	}
	if store.Metadata.CreatedAt.IsZero() || store.Metadata.UpdatedAt.IsZero() {
		t.Error("store metadata timestamps not set")
	}
}
