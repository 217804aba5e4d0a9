package dbus

import (
	"encoding/binary"
	"reflect"
	"sort"
)

// This file implements the wire framing of a Message: the primary
// 16-byte header prefix, the a(yv) header-fields array, the pad-to-8
// before the body, and the body bytes themselves (§4.F, §4.H "Framing").

type headerFieldEntry struct {
	Code byte
	Val  Variant
}

// marshalFrame serializes m into the bytes that go on the wire,
// assigning no serial of its own — the caller (the connection) must
// have already set m.serial.
func marshalFrame(m *Message) ([]byte, error) {
	orderByte := byte('l')
	if m.Order == binary.BigEndian {
		orderByte = 'B'
	}

	ctx := Context{Order: m.Order, Format: FormatDBus, Offset: 0}
	e := newEncoder(ctx, nil)
	e.write([]byte{orderByte, byte(m.Type), byte(m.Flags), m.Version})
	e.putU32(uint32(len(m.Body)))
	e.putU32(m.serial)

	var codes []int
	for c := range m.Headers {
		codes = append(codes, int(c))
	}
	sort.Ints(codes)
	entries := make([]headerFieldEntry, 0, len(codes))
	for _, c := range codes {
		entries = append(entries, headerFieldEntry{Code: byte(c), Val: m.Headers[HeaderField(c)]})
	}
	if err := e.encode("a(yv)", reflect.ValueOf(entries)); err != nil {
		return nil, err
	}

	out := e.buf.Bytes()
	pad := (8 - len(out)%8) % 8
	for i := 0; i < pad; i++ {
		out = append(out, 0)
	}
	out = append(out, m.Body...)
	return out, nil
}

// peekFrameLength inspects the fixed 16-byte prefix (endianness, type,
// flags, version, body length, serial, header-fields-array length) and
// returns the byte order, the total frame length (header+padding+body),
// and the offset at which the body begins.
func peekFrameLength(prefix []byte) (order binary.ByteOrder, total int, bodyOffset int, err error) {
	if len(prefix) < 16 {
		return nil, 0, 0, InsufficientDataError{Want: 16, Have: len(prefix)}
	}
	switch prefix[0] {
	case 'l':
		order = binary.LittleEndian
	case 'B':
		order = binary.BigEndian
	default:
		return nil, 0, 0, IncorrectValueError{"unknown byte order mark"}
	}
	bodyLen := order.Uint32(prefix[4:8])
	fieldsLen := order.Uint32(prefix[12:16])
	headerEnd := 16 + int(fieldsLen)
	pad := (8 - headerEnd%8) % 8
	bodyOffset = headerEnd + pad
	total = bodyOffset + int(bodyLen)
	return order, total, bodyOffset, nil
}

// unmarshalFrame parses a complete frame (as sized by peekFrameLength)
// into a Message.
func unmarshalFrame(data []byte) (*Message, error) {
	order, total, bodyOffset, err := peekFrameLength(data)
	if err != nil {
		return nil, err
	}
	if len(data) < total {
		return nil, InsufficientDataError{Want: total, Have: len(data)}
	}
	m := &Message{Order: order}
	m.Type = MessageType(data[1])
	m.Flags = Flags(data[2])
	m.Version = data[3]
	m.serial = order.Uint32(data[8:12])

	ctx := Context{Order: order, Format: FormatDBus, Offset: 12}
	d := newDecoder(data[12:bodyOffset], ctx)
	fieldsVal, err := d.decodeValue("a(yv)")
	if err != nil {
		return nil, err
	}
	m.Headers = make(map[HeaderField]Variant)
	for _, raw := range fieldsVal.([]interface{}) {
		entry := raw.([]interface{})
		code := entry[0].(byte)
		v := entry[1].(Variant)
		m.Headers[HeaderField(code)] = v
	}
	m.Body = append([]byte(nil), data[bodyOffset:total]...)
	return m, nil
}
