//go:build !linux && !darwin && !windows

package machineid

import "fmt"

func platformID() (string, error) {
	return "", fmt.Errorf("no machine identifier source on this platform")
}
