package dbus

import "encoding/binary"

// EncodingFormat selects between the classic D-Bus wire framing and the
// GVariant framing (§3 "Serialized context").
type EncodingFormat int

const (
	// FormatDBus is the classic D-Bus wire format: length-prefixed
	// arrays/dicts, NUL-terminated length-prefixed strings.
	FormatDBus EncodingFormat = iota
	// FormatGVariant is the GVariant encoding: NUL-terminated strings
	// with no length prefix, trailing offset tables for arrays/dicts,
	// and an additional 'm' (maybe) type.
	FormatGVariant
)

// Context carries the byte order, encoding format, and the starting
// offset used for padding arithmetic while encoding or decoding a value
// (§3 "Serialized context", §4.B).
type Context struct {
	Order  binary.ByteOrder
	Format EncodingFormat
	// Offset is the position, within the larger message, at which the
	// value being encoded/decoded begins. Alignment is computed relative
	// to this offset, not to byte 0 of the local buffer, since values are
	// often encoded into a sub-buffer that is itself embedded later in
	// the message.
	Offset int
}

// align returns the number of padding bytes needed to advance c.Offset
// to a multiple of n.
func (c Context) align(n int) int {
	if n <= 1 {
		return 0
	}
	return (n - c.Offset%n) % n
}
