// Package machineid resolves a stable per-machine identifier used as the
// secret input to vault key derivation. No master password is involved:
// the vault is bound to the machine it was created on.
//
// Resolution prefers an install-time hardware identifier that survives
// reboots and network changes; when every platform source fails it falls
// back to a deterministic composite of the current user name and home
// directory so the same value is re-derived after a crash.
package machineid

import (
	"os"
	"os/user"
	"strings"
)

// Resolve returns the stable machine identifier. It never fails and never
// returns an empty string.
func Resolve() string {
	if id, err := platformID(); err == nil {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return fallbackID()
}

// ResolveLegacy reproduces the older, less stable identifier
// (hostname + username + home directory). Hostnames change with network
// configuration, which is why the scheme was replaced; it is kept only so
// vaults written under it can be migrated on first read.
func ResolveLegacy() string {
	hostname, _ := os.Hostname()
	username, home := currentUser()
	return strings.Join([]string{hostname, username, home}, "|")
}

// fallbackID composes a deterministic identifier from the current user
// name and home directory. Weaker than a hardware ID but reproducible,
// which matters more here than entropy: a value that cannot be re-derived
// strands the vault.
func fallbackID() string {
	username, home := currentUser()
	if username == "" && home == "" {
		// Last resort so callers never see an empty identifier.
		return "craft-local-user"
	}
	return username + "|" + home
}

func currentUser() (username, home string) {
	if u, err := user.Current(); err == nil {
		username = u.Username
		home = u.HomeDir
	}
	if username == "" {
		username = os.Getenv("USER")
		if username == "" {
			username = os.Getenv("USERNAME")
		}
	}
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return username, home
}
