package credvault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/craftlabs/credvault/audit"
)

// vaultFileName is the fixed vault file name under the app config dir.
const vaultFileName = "credentials.vault"

// appConfigDirName is the Craft application's per-user config directory.
const appConfigDirName = "Craft"

// Options configures a credential Manager.
//
// The zero value is usable: the vault lands in the default per-app config
// location, auditing is off, and memory locking is not attempted.
type Options struct {
	// VaultPath is the encrypted vault file location. Empty selects
	// os.UserConfigDir()/Craft/credentials.vault.
	VaultPath string `json:"vault_path,omitempty"`

	// Audit selects the audit sink; nil disables auditing.
	Audit *audit.Config `json:"audit,omitempty"`

	// EnableMemoryLock requests best-effort whole-process memory locking
	// on top of the per-key enclave protection that is always on.
	EnableMemoryLock bool `json:"enable_memory_lock"`
}

// Validate checks the options for problems that would only surface later.
func (o Options) Validate() error {
	if o.VaultPath != "" && o.VaultPath == filepath.Base(o.VaultPath) {
		return fmt.Errorf("vault path must contain a directory: %q", o.VaultPath)
	}
	return nil
}

// DefaultVaultPath returns the fixed vault location under the user's
// per-app config directory.
func DefaultVaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(configDir, appConfigDirName, vaultFileName), nil
}
