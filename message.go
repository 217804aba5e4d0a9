package dbus

import (
	"encoding/binary"
	"os"
)

// MessageType is the D-Bus message type byte (§3 "Message").
type MessageType byte

const (
	TypeMethodCall MessageType = 1 + iota
	TypeMethodReply
	TypeError
	TypeSignal
)

// Flags is the D-Bus message flags byte.
type Flags byte

const (
	FlagNoReplyExpected Flags = 1 << iota
	FlagNoAutoStart
	FlagAllowInteractiveAuthorization
)

// HeaderField is the 1-byte field code used in the header-fields array
// (§4.F "Header fields").
type HeaderField byte

const (
	FieldPath HeaderField = 1 + iota
	FieldInterface
	FieldMember
	FieldErrorName
	FieldReplySerial
	FieldDestination
	FieldSender
	FieldSignature
	FieldUnixFDs
)

const protocolVersion = 1

// Message is an immutable framed D-Bus message: a primary header, a
// header-fields table, and a body byte buffer with any attached file
// descriptors (§3 "Message"). Once built via one of the New* functions only
// its serial changes, set by the connection just before transmission;
// Clone shares the underlying byte slices.
type Message struct {
	Order   binary.ByteOrder
	Type    MessageType
	Flags   Flags
	Version byte

	Headers map[HeaderField]Variant
	Body    []byte
	Fds     []*os.File

	serial uint32
}

// Serial returns the message's serial number, 0 until a connection
// assigns one immediately before transmission (§4.F "Identity").
func (m *Message) Serial() uint32 { return m.serial }

// Clone returns a shallow copy of m: the Headers map and Body/Fds slices
// are shared, matching §4.F's "cheap cloning of header views".
func (m *Message) Clone() *Message {
	c := *m
	return &c
}

func (m *Message) header(f HeaderField) (Variant, bool) {
	v, ok := m.Headers[f]
	return v, ok
}

func (m *Message) stringHeader(f HeaderField) string {
	if v, ok := m.header(f); ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// Path returns the header's FieldPath as an ObjectPath, or "" if absent.
func (m *Message) Path() ObjectPath {
	if v, ok := m.header(FieldPath); ok {
		if p, ok := v.Value().(ObjectPath); ok {
			return p
		}
	}
	return ""
}

// Interface returns the header's FieldInterface, or "" if absent.
func (m *Message) Interface() string { return m.stringHeader(FieldInterface) }

// Member returns the header's FieldMember, or "" if absent.
func (m *Message) Member() string { return m.stringHeader(FieldMember) }

// ErrorName returns the header's FieldErrorName, or "" if absent.
func (m *Message) ErrorName() string { return m.stringHeader(FieldErrorName) }

// Destination returns the header's FieldDestination, or "" if absent.
func (m *Message) Destination() string { return m.stringHeader(FieldDestination) }

// Sender returns the header's FieldSender, or "" if absent.
func (m *Message) Sender() string { return m.stringHeader(FieldSender) }

// ReplySerial returns the header's FieldReplySerial, or (0, false) if absent.
func (m *Message) ReplySerial() (uint32, bool) {
	if v, ok := m.header(FieldReplySerial); ok {
		if s, ok := v.Value().(uint32); ok {
			return s, true
		}
	}
	return 0, false
}

// BodySignature returns the header's FieldSignature, or the empty
// signature if the body is empty.
func (m *Message) BodySignature() Signature {
	if v, ok := m.header(FieldSignature); ok {
		if s, ok := v.Value().(Signature); ok {
			return s
		}
	}
	return Signature{}
}

// validate enforces the per-type required-field invariants of §3
// "Message", grounded on danderson/dbus's header.Valid().
func (m *Message) validate() error {
	if m.serial == 0 {
		// serial is assigned lazily by the connection, so a zero serial
		// is not treated as an error here.
	}
	switch m.Type {
	case TypeMethodCall:
		if m.Path() == "" || m.Member() == "" {
			return NameError{Kind: "message", Text: "method call missing path or member"}
		}
	case TypeMethodReply:
		if _, ok := m.ReplySerial(); !ok {
			return NameError{Kind: "message", Text: "method return missing reply serial"}
		}
	case TypeError:
		if _, ok := m.ReplySerial(); !ok || m.ErrorName() == "" {
			return NameError{Kind: "message", Text: "error missing reply serial or error name"}
		}
	case TypeSignal:
		if m.Path() == "" || m.Interface() == "" || m.Member() == "" {
			return NameError{Kind: "message", Text: "signal missing path, interface, or member"}
		}
	}
	return nil
}

// bodyContext returns the Context new body bytes should be encoded with:
// classic D-Bus, the message's byte order, zero starting offset (the
// body is always its own alignment universe, per the spec).
func bodyContext(order binary.ByteOrder) Context {
	return Context{Order: order, Format: FormatDBus, Offset: 0}
}

func newBuiltMessage(order binary.ByteOrder, typ MessageType, flags Flags, headers map[HeaderField]Variant, body []interface{}, fds []*os.File) (*Message, error) {
	m := &Message{
		Order:   order,
		Type:    typ,
		Flags:   flags,
		Version: protocolVersion,
		Headers: headers,
		Fds:     fds,
	}
	if len(body) > 0 {
		sig, err := SignatureOf(body...)
		if err != nil {
			return nil, err
		}
		var sideband *[]*os.File
		if fds != nil {
			sideband = &m.Fds
		}
		b, err := EncodeMulti(bodyContext(order), sig, body, sideband)
		if err != nil {
			return nil, err
		}
		m.Body = b
		m.Headers[FieldSignature] = MakeVariantWithSignature(sig, Signature{"g"})
	} else {
		m.Body = []byte{}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMethodCallMessage builds a method-call message per §4.F. destination
// may be "" only if FlagNoAutoStart semantics are handled by the caller;
// path and member are always required.
func NewMethodCallMessage(order binary.ByteOrder, destination string, path ObjectPath, iface, member string, flags Flags, body ...interface{}) (*Message, error) {
	if !path.IsValid() {
		return nil, NameError{"object path", string(path)}
	}
	if !validateMemberName(member) {
		return nil, NameError{"member", member}
	}
	if iface != "" && !validateInterfaceName(iface) {
		return nil, NameError{"interface", iface}
	}
	h := map[HeaderField]Variant{
		FieldPath:   MakeVariant(path),
		FieldMember: MakeVariant(member),
	}
	if iface != "" {
		h[FieldInterface] = MakeVariant(iface)
	}
	if destination != "" {
		h[FieldDestination] = MakeVariant(destination)
	}
	return newBuiltMessage(order, TypeMethodCall, flags, h, body, nil)
}

// NewMethodReturnMessage builds a method-return message replying to call.
func NewMethodReturnMessage(order binary.ByteOrder, call *Message, body ...interface{}) (*Message, error) {
	h := map[HeaderField]Variant{
		FieldReplySerial: MakeVariant(call.serial),
	}
	if s := call.Sender(); s != "" {
		h[FieldDestination] = MakeVariant(s)
	}
	return newBuiltMessage(order, TypeMethodReply, 0, h, body, nil)
}

// NewErrorMessage builds an error message replying to call with the
// given error name and optional descriptive body.
func NewErrorMessage(order binary.ByteOrder, call *Message, name string, body ...interface{}) (*Message, error) {
	if !validateErrorName(name) {
		return nil, NameError{"error", name}
	}
	h := map[HeaderField]Variant{
		FieldReplySerial: MakeVariant(call.serial),
		FieldErrorName:   MakeVariant(name),
	}
	if s := call.Sender(); s != "" {
		h[FieldDestination] = MakeVariant(s)
	}
	return newBuiltMessage(order, TypeError, 0, h, body, nil)
}

// NewSignalMessage builds a signal message.
func NewSignalMessage(order binary.ByteOrder, path ObjectPath, iface, member string, body ...interface{}) (*Message, error) {
	if !path.IsValid() {
		return nil, NameError{"object path", string(path)}
	}
	if !validateInterfaceName(iface) {
		return nil, NameError{"interface", iface}
	}
	if !validateMemberName(member) {
		return nil, NameError{"member", member}
	}
	h := map[HeaderField]Variant{
		FieldPath:      MakeVariant(path),
		FieldInterface: MakeVariant(iface),
		FieldMember:    MakeVariant(member),
	}
	return newBuiltMessage(order, TypeSignal, 0, h, body, nil)
}
