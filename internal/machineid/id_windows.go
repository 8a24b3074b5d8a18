//go:build windows

package machineid

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// platformID reads the MachineGuid generated by Windows at install time.
func platformID() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE,
		`SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return "", fmt.Errorf("failed to open cryptography registry key: %w", err)
	}
	defer key.Close()

	guid, _, err := key.GetStringValue("MachineGuid")
	if err != nil {
		return "", fmt.Errorf("failed to read MachineGuid: %w", err)
	}
	return guid, nil
}
