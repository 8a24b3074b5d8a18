// Package mem applies best-effort memory locking so derived key material
// is not swapped to disk. Failure to lock is never fatal: memguard still
// protects individual enclaves, this only widens the guarantee to the
// whole process where the platform allows it.
package mem

// ProtectionLevel reports how much of the process memory could be locked.
type ProtectionLevel int

const (
	ProtectionNone    ProtectionLevel = iota // no locking achieved
	ProtectionPartial                        // locking unavailable or denied, enclave protection only
	ProtectionFull                           // all current and future pages locked
)

func (l ProtectionLevel) String() string {
	switch l {
	case ProtectionFull:
		return "full"
	case ProtectionPartial:
		return "partial"
	default:
		return "none"
	}
}

// Lock attempts to pin process memory and returns the level achieved.
func Lock() (ProtectionLevel, error) {
	return lockPlatform()
}

// Unlock releases any lock taken by Lock.
func Unlock() error {
	return unlockPlatform()
}
