//go:build linux

package machineid

import "os"

var candidatePaths = []string{
	"/var/lib/dbus/machine-id",
	"/etc/machine-id",
}

// ID returns the local machine's D-Bus machine ID: 32 lowercase hex
// digits, read from the first of the platform's candidate files that
// exists.
func ID() (string, error) {
	for _, p := range candidatePaths {
		if b, err := os.ReadFile(p); err == nil {
			return normalize(b)
		}
	}
	return "", errNotFound(candidatePaths)
}
