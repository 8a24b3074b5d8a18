//go:build darwin

package machineid

import (
	"fmt"
	"os/exec"
	"strings"
)

// platformID extracts the IOPlatformUUID, macOS's install-time hardware
// identifier, from the IOKit registry.
func platformID() (string, error) {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return "", fmt.Errorf("failed to query IOKit registry: %w", err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "IOPlatformUUID") {
			continue
		}
		// Line shape: "IOPlatformUUID" = "XXXXXXXX-XXXX-..."
		parts := strings.Split(line, "\"")
		if len(parts) >= 4 && parts[3] != "" {
			return parts[3], nil
		}
	}

	return "", fmt.Errorf("IOPlatformUUID not found in ioreg output")
}
