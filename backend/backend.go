// Package backend defines the credential storage backend contract and its
// implementations. Backends form a closed, priority-ranked set: the
// encrypted-file backend is the only one enabled today, with the
// OS-keychain and environment backends present as intentionally disabled
// variants marking the extension points.
package backend

import (
	"errors"

	"github.com/craftlabs/credvault/credential"
)

// ErrUnavailable is returned by every operation of a backend whose
// Available probe is false. The manager skips such backends entirely, so
// seeing this error from a manager call indicates a wiring bug.
var ErrUnavailable = errors.New("credential backend unavailable")

// Backend priorities. The manager scans descending, and the single
// highest-priority available backend is the sole write target.
const (
	PriorityEncryptedFile = 100
	PriorityKeychain      = 50
	PriorityEnvironment   = 10
)

// Backend is the capability set every storage medium implements.
//
// Get returns (nil, nil) when the slot is empty; an error means the
// backend itself failed and the manager should continue scanning. Delete
// reports whether a credential was actually removed so the manager can
// aggregate deletions across backends.
type Backend interface {
	Name() string
	Priority() int
	Available() bool
	Get(id credential.ID) (*credential.StoredCredential, error)
	Set(id credential.ID, cred credential.StoredCredential) error
	Delete(id credential.ID) (bool, error)
	List() ([]credential.ID, error)
}
