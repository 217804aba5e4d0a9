//go:build openbsd || netbsd

package machineid

import "os"

var candidatePaths = []string{
	"/var/lib/dbus/machine-id",
	"/etc/machine-id",
	"/var/db/dbus/machine-id",
}

// ID returns the machine ID from the same file list as FreeBSD/DragonFly,
// but with no sysctl fallback: §6 gives OpenBSD/NetBSD no equivalent of
// kern.hostuuid, so a missing file is a hard failure here.
func ID() (string, error) {
	for _, p := range candidatePaths {
		if b, err := os.ReadFile(p); err == nil {
			return normalize(b)
		}
	}
	return "", errNotFound(candidatePaths)
}
