//go:build windows

package machineid

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

// ID returns the current hardware profile's GUID, formatted as 32
// lowercase hex digits, per §6's Windows branch.
func ID() (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SYSTEM\HardwareConfig\Current`, registry.QUERY_VALUE)
	if err != nil {
		return "", errNotFound([]string{`HKLM\SYSTEM\HardwareConfig\Current`})
	}
	defer k.Close()
	guid, _, err := k.GetStringValue("HwProfileGuid")
	if err != nil {
		return "", errNotFound([]string{`HwProfileGuid`})
	}
	return normalize([]byte(strings.Trim(guid, "{}")))
}
