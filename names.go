package dbus

// Name validators for the five name kinds defined by the D-Bus
// specification (§4.E). Every validator rejects the empty string and
// anything over 255 bytes, grounded on zbus_names/src/utils.rs's shared
// element walker.

const maxNameLen = 255

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// validateElements walks a dot-separated name, requiring at least
// minElements parts, each starting with a non-digit (unless
// allowDigitStart) and containing only isNameByte (plus '-' when
// allowHyphen), mirroring zbus_names/src/utils.rs's validate_bus_name.
func validateElements(s string, minElements int, allowHyphen, allowDigitStart bool) bool {
	if len(s) == 0 || len(s) > maxNameLen {
		return false
	}
	elements := 0
	i := 0
	for i < len(s) {
		start := i
		for i < len(s) && s[i] != '.' {
			c := s[i]
			ok := isNameByte(c) || (allowHyphen && c == '-')
			if !ok {
				return false
			}
			i++
		}
		if i == start {
			return false // empty element
		}
		if !allowDigitStart && s[start] >= '0' && s[start] <= '9' {
			return false
		}
		elements++
		if i < len(s) && s[i] == '.' {
			i++
			if i == len(s) {
				return false // trailing dot
			}
		}
	}
	return elements >= minElements
}

// validateInterfaceName validates an interface or error name: ASCII
// alphanumerics and '_', at least two dot-separated elements, each
// starting with a non-digit, no '-'.
func validateInterfaceName(s string) bool {
	return validateElements(s, 2, false, false)
}

// validateErrorName has the same grammar as an interface name.
func validateErrorName(s string) bool { return validateInterfaceName(s) }

// validateMemberName validates a single-element, no-dot member name.
func validateMemberName(s string) bool {
	if len(s) == 0 || len(s) > maxNameLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	if s[0] >= '0' && s[0] <= '9' {
		return false
	}
	return true
}

// validateWellKnownName validates a well-known bus name: like an
// interface name but '-' is allowed within elements.
func validateWellKnownName(s string) bool {
	return validateElements(s, 2, true, false)
}

// validateUniqueName validates a bus-assigned unique name: the literal
// org.freedesktop.DBus, or ':' followed by >= 2 dot-separated elements
// over [A-Za-z0-9_-], elements may start with a digit.
func validateUniqueName(s string) bool {
	if s == "org.freedesktop.DBus" {
		return true
	}
	if len(s) < 2 || s[0] != ':' {
		return false
	}
	return validateElements(s[1:], 2, true, true)
}

// validateObjectPath validates an object path: "/" or a sequence of
// "/"+element over [A-Za-z0-9_], no trailing slash unless exactly "/".
func validateObjectPath(s string) bool {
	if s == "/" {
		return true
	}
	if len(s) == 0 || len(s) > maxNameLen || s[0] != '/' {
		return false
	}
	i := 1
	for i < len(s) {
		start := i
		for i < len(s) && s[i] != '/' {
			if !isNameByte(s[i]) {
				return false
			}
			i++
		}
		if i == start {
			return false // empty element ("//" or trailing "/")
		}
		if i < len(s) {
			i++ // consume '/'
			if i == len(s) {
				return false // trailing slash
			}
		}
	}
	return true
}
