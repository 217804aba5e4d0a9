//go:build darwin

package machineid

import "golang.org/x/sys/unix"

// ID returns the host UUID reported by the kernel, formatted as 32
// lowercase hex digits. gethostuuid(2) itself has no portable wrapper in
// golang.org/x/sys/unix; kern.uuid is the sysctl-exposed equivalent and
// is what the BSD family (including Darwin's XNU kernel) actually serves
// it through.
func ID() (string, error) {
	s, err := unix.Sysctl("kern.uuid")
	if err != nil {
		return "", errNotFound([]string{"kern.uuid"})
	}
	return normalize([]byte(s))
}
