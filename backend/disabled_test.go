package backend

import (
	"errors"
	"testing"

	"github.com/craftlabs/credvault/credential"
)

// Both stub backends must refuse every operation while disabled so the
// manager's availability probe is the only gate that matters.
func TestDisabledBackends(t *testing.T) {
	id := credential.ID{Type: credential.TypeAPIKey}

	backends := []Backend{
		NewEnvBackend(),
		NewKeychainBackend(),
	}

	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			if b.Available() {
				t.Fatalf("%s must report unavailable", b.Name())
			}
			if _, err := b.Get(id); !errors.Is(err, ErrUnavailable) {
				t.Errorf("Get: got %v, want ErrUnavailable", err)
			}
			if err := b.Set(id, credential.StoredCredential{Value: "x"}); !errors.Is(err, ErrUnavailable) {
				t.Errorf("Set: got %v, want ErrUnavailable", err)
			}
			if _, err := b.Delete(id); !errors.Is(err, ErrUnavailable) {
				t.Errorf("Delete: got %v, want ErrUnavailable", err)
			}
			if _, err := b.List(); !errors.Is(err, ErrUnavailable) {
				t.Errorf("List: got %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestBackendPriorityRanking(t *testing.T) {
	file := NewFileBackend("unused")
	keychain := NewKeychainBackend()
	env := NewEnvBackend()

	if !(file.Priority() > keychain.Priority() && keychain.Priority() > env.Priority()) {
		t.Errorf("priority ordering broken: file=%d keychain=%d env=%d",
			file.Priority(), keychain.Priority(), env.Priority())
	}
}
