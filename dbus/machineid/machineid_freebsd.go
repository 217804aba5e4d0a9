//go:build freebsd || dragonfly

package machineid

import (
	"os"

	"golang.org/x/sys/unix"
)

var candidatePaths = []string{
	"/var/lib/dbus/machine-id",
	"/etc/machine-id",
	"/var/db/dbus/machine-id",
}

// ID returns the machine ID, preferring the file list §6 gives for
// FreeBSD/DragonFly and falling back to the kern.hostuuid sysctl with its
// hyphens stripped.
func ID() (string, error) {
	for _, p := range candidatePaths {
		if b, err := os.ReadFile(p); err == nil {
			return normalize(b)
		}
	}
	s, err := unix.Sysctl("kern.hostuuid")
	if err != nil {
		return "", errNotFound(append(candidatePaths, "kern.hostuuid"))
	}
	return normalize([]byte(s))
}
