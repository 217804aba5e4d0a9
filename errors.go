package dbus

import "fmt"

// The error kinds named in §7 of the specification. Each is a distinct Go
// type so callers can discriminate with errors.As instead of string
// matching.

// InsufficientDataError is returned when the decoder runs out of bytes
// before a value is fully read.
type InsufficientDataError struct {
	Want int
	Have int
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("dbus: insufficient data: need %d bytes, have %d", e.Want, e.Have)
}

// InvalidUtf8Error is returned when a string-family value is not valid UTF-8.
type InvalidUtf8Error struct{}

func (e InvalidUtf8Error) Error() string { return "dbus: invalid UTF-8 in string" }

// IncorrectValueError is returned for e.g. a boolean byte outside {0,1}.
type IncorrectValueError struct {
	Reason string
}

func (e IncorrectValueError) Error() string { return "dbus: incorrect value: " + e.Reason }

// PaddingNot0Error is returned in strict mode when alignment padding
// bytes are non-zero.
type PaddingNot0Error struct{}

func (e PaddingNot0Error) Error() string { return "dbus: padding byte is not 0" }

// NotSupportedError is returned for a feature unavailable on the current
// platform or negotiated session (e.g. fd passing without NEGOTIATE_UNIX_FD).
type NotSupportedError struct {
	Feature string
}

func (e NotSupportedError) Error() string { return "dbus: not supported: " + e.Feature }

// TransportError wraps a socket I/O failure or handshake refusal.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string { return "dbus: transport error: " + e.Err.Error() }
func (e TransportError) Unwrap() error { return e.Err }

// AddressError is returned for a missing or unparsable bus address, or a
// failed address-resolution helper.
type AddressError struct {
	Reason string
}

func (e AddressError) Error() string { return "dbus: address error: " + e.Reason }

// NameError is returned when a bus/interface/member/path/signature name
// fails §4.E validation.
type NameError struct {
	Kind string
	Text string
}

func (e NameError) Error() string {
	return fmt.Sprintf("dbus: invalid %s name: %q", e.Kind, e.Text)
}

// ClosedError is returned by any operation attempted on, or any pending
// call outstanding at the time of, connection teardown.
type ClosedError struct{}

func (e ClosedError) Error() string { return "dbus: connection closed" }

// RemoteError represents a MethodCall error reply: the remote end
// returned an error message naming e.Name with an optional descriptive
// body (§7 "MethodCall remote error").
type RemoteError struct {
	Name string
	Body []interface{}
}

func (e RemoteError) Error() string {
	if len(e.Body) > 0 {
		if s, ok := e.Body[0].(string); ok {
			return s
		}
	}
	return e.Name
}
