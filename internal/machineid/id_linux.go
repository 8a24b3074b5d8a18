//go:build linux

package machineid

import (
	"fmt"
	"os"
	"strings"
)

// platformID reads the D-Bus machine ID written at install time. The DMI
// product UUID is a secondary source for systems without systemd/dbus.
func platformID() (string, error) {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id, nil
			}
		}
	}

	if data, err := os.ReadFile("/sys/class/dmi/id/product_uuid"); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" && id != "Not Settable" && id != "Not Present" {
			return id, nil
		}
	}

	return "", fmt.Errorf("no machine identifier source available")
}
