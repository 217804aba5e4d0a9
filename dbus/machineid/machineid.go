// Package machineid provides the platform-specific "machine ID" that
// backs org.freedesktop.DBus.Peer.GetMachineId (§6): 32 lowercase hex
// digits, one per host, stable across reboots. Kept free of any
// dependency on the root dbus package so the root package can import it
// for its own Peer.GetMachineId server-side handler without a cycle.
package machineid

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// NotFoundError is returned when none of a platform's candidate sources
// yielded a machine ID.
type NotFoundError struct {
	Tried []string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("machineid: none of %v found", e.Tried)
}

func errNotFound(paths []string) error { return NotFoundError{Tried: paths} }

// normalize trims whitespace and hyphens from raw machine-id bytes and
// validates the result is 32 lowercase hex digits.
func normalize(raw []byte) (string, error) {
	s := strings.ToLower(strings.TrimSpace(string(raw)))
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 32 {
		return "", fmt.Errorf("machineid: expected 32 hex digits, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("machineid: not hex: %w", err)
	}
	return s, nil
}
