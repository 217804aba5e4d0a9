package dbus

import (
	"fmt"
	"reflect"
)

// ObjectPath represents a D-Bus object path, a '/'-separated identifier
// of a server-side object (§4.E "Object path").
type ObjectPath string

// IsValid reports whether p satisfies the object-path grammar.
func (p ObjectPath) IsValid() bool {
	return validateObjectPath(string(p))
}

// UnixFD is a D-Bus file-descriptor value ('h'). On the wire it is a u32
// index into the message's attached-descriptor array (§4.C).
type UnixFD uint32

// UnixFDIndex is the decoded representation of an 'h' field before the
// sideband descriptor table has been resolved to an open file.
type UnixFDIndex uint32

var (
	tyByte      = reflect.TypeOf(byte(0))
	tyBool      = reflect.TypeOf(false)
	tyInt16     = reflect.TypeOf(int16(0))
	tyUint16    = reflect.TypeOf(uint16(0))
	tyInt32     = reflect.TypeOf(int32(0))
	tyUint32    = reflect.TypeOf(uint32(0))
	tyInt64     = reflect.TypeOf(int64(0))
	tyUint64    = reflect.TypeOf(uint64(0))
	tyFloat64   = reflect.TypeOf(float64(0))
	tyString    = reflect.TypeOf("")
	tyObjectPath = reflect.TypeOf(ObjectPath(""))
	tySignature = reflect.TypeOf(Signature{})
	tyVariant   = reflect.TypeOf(Variant{})
	tyUnixFD    = reflect.TypeOf(UnixFD(0))
	tyUnixFDIdx = reflect.TypeOf(UnixFDIndex(0))
)

// signatureOfValue computes the D-Bus signature for a single Go value,
// mirroring the way zvariant_derive/signature.rs walks a type to build
// its signature string.
func signatureOfValue(v interface{}) (Signature, error) {
	if v == nil {
		return Signature{}, fmt.Errorf("dbus: cannot compute signature of nil")
	}
	return signatureOfType(reflect.TypeOf(v))
}

func signatureOfType(t reflect.Type) (Signature, error) {
	switch t {
	case tyByte:
		return Signature{"y"}, nil
	case tyBool:
		return Signature{"b"}, nil
	case tyInt16:
		return Signature{"n"}, nil
	case tyUint16:
		return Signature{"q"}, nil
	case tyInt32:
		return Signature{"i"}, nil
	case tyUint32:
		return Signature{"u"}, nil
	case tyInt64:
		return Signature{"x"}, nil
	case tyUint64:
		return Signature{"t"}, nil
	case tyFloat64:
		return Signature{"d"}, nil
	case tyString:
		return Signature{"s"}, nil
	case tyObjectPath:
		return Signature{"o"}, nil
	case tySignature:
		return Signature{"g"}, nil
	case tyVariant:
		return Signature{"v"}, nil
	case tyUnixFD, tyUnixFDIdx:
		return Signature{"h"}, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		elem, err := signatureOfType(t.Elem())
		if err != nil {
			return Signature{}, err
		}
		return Signature{"a" + elem.str}, nil
	case reflect.Map:
		key, err := signatureOfType(t.Key())
		if err != nil {
			return Signature{}, err
		}
		val, err := signatureOfType(t.Elem())
		if err != nil {
			return Signature{}, err
		}
		return Signature{"a{" + key.str + val.str + "}"}, nil
	case reflect.Struct:
		var s string
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue // unexported
			}
			fs, err := signatureOfType(f.Type)
			if err != nil {
				return Signature{}, err
			}
			s += fs.str
		}
		return Signature{"(" + s + ")"}, nil
	case reflect.Ptr:
		return signatureOfType(t.Elem())
	}
	return Signature{}, UnsupportedTypeError{t.String()}
}

// GetSignature computes the combined signature of a method-call or
// signal body, the way (*Object).Go does in the teacher.
func GetSignature(vs ...interface{}) Signature {
	sig, err := SignatureOf(vs...)
	if err != nil {
		// Matches the teacher's behavior of never panicking from the hot
		// call path; an empty signature will simply fail later encoding.
		return Signature{}
	}
	return sig
}
