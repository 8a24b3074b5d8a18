//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package mem

func lockPlatform() (ProtectionLevel, error) {
	// No whole-process locking on this platform; enclaves still apply.
	return ProtectionPartial, nil
}

func unlockPlatform() error {
	return nil
}
