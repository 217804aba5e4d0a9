package dbus

import (
	"os"
	"strings"
)

// Address parsing and transport discovery are out of scope for the core
// (§1 "Explicitly out of scope"): the core only needs enough of it to
// dial a known address string. Launching dbus-launch/ibus/launchctl
// helpers, X11 root-window lookup, and every platform-specific resolver
// are left to callers through the AddressResolver seam below.

// AddressResolver resolves a non-socket transport scheme (ibus,
// autolaunch, launchd, ...) to a concrete dialable address by running
// whatever external helper that scheme requires. The core never invokes
// os/exec itself; a caller that needs autolaunch/ibus support supplies a
// resolver built on top of it.
type AddressResolver func(scheme string, kv map[string]string) (string, error)

// addressSpec is one semicolon-separated transport spec, "scheme:k=v,...".
type addressSpec struct {
	scheme string
	kv     map[string]string
}

func parseAddress(address string) ([]addressSpec, error) {
	var specs []addressSpec
	for _, part := range strings.Split(address, ";") {
		if part == "" {
			continue
		}
		i := strings.IndexByte(part, ':')
		if i < 0 {
			return nil, AddressError{"transport spec missing ':'"}
		}
		spec := addressSpec{scheme: part[:i], kv: make(map[string]string)}
		for _, kv := range strings.Split(part[i+1:], ",") {
			if kv == "" {
				continue
			}
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				continue
			}
			spec.kv[kv[:eq]] = unescapeAddressValue(kv[eq+1:])
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, AddressError{"empty address"}
	}
	return specs, nil
}

// unescapeAddressValue undoes the percent-encoding the D-Bus address
// grammar uses for values (a restricted subset of URL escaping).
func unescapeAddressValue(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := hexDigit(s[i+1])
			lo, ok2 := hexDigit(s[i+2])
			if ok1 && ok2 {
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// SessionBusAddress returns DBUS_SESSION_BUS_ADDRESS, per §6 "Transport
// addresses".
func SessionBusAddress() (string, bool) {
	return os.LookupEnv("DBUS_SESSION_BUS_ADDRESS")
}

// SystemBusAddress returns DBUS_SYSTEM_BUS_ADDRESS if set, else the
// well-known default system bus socket path.
func SystemBusAddress() string {
	if a, ok := os.LookupEnv("DBUS_SYSTEM_BUS_ADDRESS"); ok && a != "" {
		return a
	}
	return "unix:path=/var/run/dbus/system_bus_socket"
}
