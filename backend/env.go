package backend

import "github.com/craftlabs/credvault/credential"

// EnvBackend is an interface-compliant no-op documenting the extension
// point for a read-only environment-variable backend. It reports itself
// unavailable, so the manager never routes an operation here; the type
// exists so adding a real implementation later is a local change instead
// of interface churn.
type EnvBackend struct{}

// NewEnvBackend returns the disabled environment backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{}
}

func (e *EnvBackend) Name() string  { return "environment" }
func (e *EnvBackend) Priority() int { return PriorityEnvironment }

// Available is false: the backend is intentionally disabled.
func (e *EnvBackend) Available() bool { return false }

func (e *EnvBackend) Get(id credential.ID) (*credential.StoredCredential, error) {
	return nil, ErrUnavailable
}

func (e *EnvBackend) Set(id credential.ID, cred credential.StoredCredential) error {
	return ErrUnavailable
}

func (e *EnvBackend) Delete(id credential.ID) (bool, error) {
	return false, ErrUnavailable
}

func (e *EnvBackend) List() ([]credential.ID, error) {
	return nil, ErrUnavailable
}
