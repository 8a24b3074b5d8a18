// Package credvault is the local, single-user credential vault embedded in
// the Craft desktop assistant. Secrets are stored encrypted at rest in a
// single machine-bound container file; the encryption key is derived from
// a stable machine identifier, so no master password is ever requested.
//
// The Manager is an explicit context object: construct one with New at
// application startup, inject it into callers, and Close it on shutdown to
// release cached key material. All operations are safe for concurrent use.
package credvault

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/craftlabs/credvault/audit"
	"github.com/craftlabs/credvault/backend"
	"github.com/craftlabs/credvault/credential"
	"github.com/craftlabs/credvault/internal/mem"
)

func init() {
	// Purge memguard enclaves if the process is interrupted.
	memguard.CatchInterrupt()
}

var (
	// ErrNoWriteBackend is returned by Set when no backend is available
	// to persist the credential. This is the one failure mode that must
	// reach the caller: silently dropping a secret is unacceptable.
	ErrNoWriteBackend = errors.New("no writable credential backend available")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("credential manager is closed")
)

// Manager orchestrates the credential backends. Reads scan backends in
// descending priority order; writes go to the single highest-priority
// available backend; deletes fan out to every backend so no orphaned
// copies survive.
type Manager struct {
	auditLog   audit.Logger
	protection mem.ProtectionLevel
	memLocked  bool

	mu       sync.Mutex
	backends []backend.Backend // configured set, construction order
	active   []backend.Backend // discovered available, priority descending

	initialized bool
	initFlight  chan struct{}
	initErr     error
	discoveries int // discovery passes performed, for tests

	closed bool
}

// New creates a Manager with the standard backend set: the encrypted-file
// backend plus the disabled keychain and environment stubs.
func New(opts Options) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	path := opts.VaultPath
	if path == "" {
		var err error
		if path, err = DefaultVaultPath(); err != nil {
			return nil, err
		}
	}

	auditLog, err := audit.NewLogger(opts.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to set up audit logging: %w", err)
	}

	m := newManager(opts, auditLog,
		backend.NewFileBackend(path, backend.WithAudit(auditLog)),
		backend.NewKeychainBackend(),
		backend.NewEnvBackend(),
	)
	return m, nil
}

// NewWithBackends creates a Manager over an explicit backend set. Intended
// for tests and for embedding scenarios that supply their own storage.
func NewWithBackends(opts Options, backends ...backend.Backend) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	auditLog, err := audit.NewLogger(opts.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to set up audit logging: %w", err)
	}
	return newManager(opts, auditLog, backends...), nil
}

func newManager(opts Options, auditLog audit.Logger, backends ...backend.Backend) *Manager {
	m := &Manager{
		auditLog: auditLog,
		backends: backends,
	}
	if opts.EnableMemoryLock {
		level, err := mem.Lock()
		if err == nil {
			m.memLocked = true
		}
		m.protection = level
	}
	return m
}

// Initialize performs backend discovery. Calling it is optional, since
// every operation initializes on demand, but doing it at startup surfaces
// configuration problems early. Idempotent; concurrent callers collapse
// into a single discovery pass.
func (m *Manager) Initialize() error {
	return m.ensureInitialized()
}

// ensureInitialized guarantees exactly one discovery pass is in flight at
// a time. The in-flight marker is cleared on failure so a later call can
// retry rather than being stuck with a poisoned manager.
func (m *Manager) ensureInitialized() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}

	if m.initFlight != nil {
		// Another goroutine is discovering; wait for its result.
		flight := m.initFlight
		m.mu.Unlock()
		<-flight

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.initialized {
			return nil
		}
		return m.initErr
	}

	flight := make(chan struct{})
	m.initFlight = flight
	m.mu.Unlock()

	active, err := m.discoverBackends()

	m.mu.Lock()
	if err == nil {
		m.active = active
		m.initialized = true
	}
	m.initErr = err
	m.initFlight = nil
	m.mu.Unlock()
	close(flight)
	return err
}

// discoverBackends probes availability across the configured set and
// orders the survivors by descending priority. The sort is stable so
// equal-priority backends keep construction order.
func (m *Manager) discoverBackends() ([]backend.Backend, error) {
	m.mu.Lock()
	m.discoveries++
	configured := make([]backend.Backend, len(m.backends))
	copy(configured, m.backends)
	m.mu.Unlock()

	var active []backend.Backend
	for _, b := range configured {
		if b.Available() {
			active = append(active, b)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority() > active[j].Priority()
	})

	names := make([]string, len(active))
	for i, b := range active {
		names[i] = b.Name()
	}
	m.logAudit("backends_discovered", true, map[string]interface{}{
		"available": names,
	})
	return active, nil
}

func (m *Manager) activeBackends() []backend.Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]backend.Backend, len(m.active))
	copy(out, m.active)
	return out
}

// Get returns the credential for id from the first backend that has it,
// scanning in descending priority order. A backend failure is isolated
// and logged; the scan continues. (nil, nil) means not found.
func (m *Manager) Get(id credential.ID) (*credential.StoredCredential, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}

	for _, b := range m.activeBackends() {
		cred, err := b.Get(id)
		if err != nil {
			m.logAudit("backend_get_failed", false, map[string]interface{}{
				"backend": b.Name(),
				"error":   err.Error(),
			})
			continue
		}
		if cred != nil {
			return cred, nil
		}
	}
	return nil, nil
}

// Set writes the credential to the single write backend: the highest-
// priority available one. There is no fan-out; one authoritative copy.
func (m *Manager) Set(id credential.ID, cred credential.StoredCredential) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := m.ensureInitialized(); err != nil {
		return err
	}

	active := m.activeBackends()
	if len(active) == 0 {
		return ErrNoWriteBackend
	}
	if err := active[0].Set(id, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	m.logAudit("credential_set", true, map[string]interface{}{
		"backend": active[0].Name(),
		"type":    string(id.Type),
	})
	return nil
}

// Delete removes the credential from every backend that holds it and
// reports whether at least one removal occurred. Per-backend failures are
// isolated so one broken backend cannot leave orphaned copies elsewhere.
func (m *Manager) Delete(id credential.ID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	if err := m.ensureInitialized(); err != nil {
		return false, err
	}

	deleted := false
	for _, b := range m.activeBackends() {
		removed, err := b.Delete(id)
		if err != nil {
			m.logAudit("backend_delete_failed", false, map[string]interface{}{
				"backend": b.Name(),
				"error":   err.Error(),
			})
			continue
		}
		deleted = deleted || removed
	}
	if deleted {
		m.logAudit("credential_deleted", true, map[string]interface{}{
			"type": string(id.Type),
		})
	}
	return deleted, nil
}

// List unions credential identities across all backends, de-duplicated by
// identity and optionally narrowed by a conjunctive filter.
func (m *Manager) List(filter *credential.Filter) ([]credential.ID, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []credential.ID
	for _, b := range m.activeBackends() {
		backendIDs, err := b.List()
		if err != nil {
			m.logAudit("backend_list_failed", false, map[string]interface{}{
				"backend": b.Name(),
				"error":   err.Error(),
			})
			continue
		}
		for _, id := range backendIDs {
			if filter != nil && !filter.Matches(id) {
				continue
			}
			key := id.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MemoryProtection reports the level of process-memory hardening that was
// achieved at construction. Useful for surfacing a warning in the host
// application when locking was refused by the OS.
func (m *Manager) MemoryProtection() mem.ProtectionLevel {
	return m.protection
}

// IsExpired reports whether the credential's expiry, less the refresh
// buffer, has passed. Nil credentials and credentials without an expiry
// are never expired.
func (m *Manager) IsExpired(cred *credential.StoredCredential) bool {
	return cred != nil && cred.IsExpired()
}

// Close releases cached key material and shuts down auditing. The manager
// is unusable afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	backends := m.backends
	m.backends = nil
	m.active = nil
	m.initialized = false
	m.mu.Unlock()

	var firstErr error
	for _, b := range backends {
		closer, ok := b.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.memLocked {
		_ = mem.Unlock()
	}
	if err := m.auditLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// discoveryCount reports how many discovery passes have run; test hook.
func (m *Manager) discoveryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discoveries
}

func (m *Manager) logAudit(action string, success bool, metadata map[string]interface{}) {
	_ = m.auditLog.Log(action, success, metadata)
}
