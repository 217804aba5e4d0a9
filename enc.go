package dbus

import (
	"bytes"
	"math"
	"os"
	"reflect"
	"unicode/utf8"
)

// encoder serializes values against a signature, advancing ctx.Offset as
// it writes and zero-filling alignment padding (§4.C "Alignment").
type encoder struct {
	buf *bytes.Buffer
	ctx Context
	fds *[]*os.File
}

func newEncoder(ctx Context, fds *[]*os.File) *encoder {
	return &encoder{buf: new(bytes.Buffer), ctx: ctx, fds: fds}
}

func (e *encoder) pad(n int) {
	p := e.ctx.align(n)
	for i := 0; i < p; i++ {
		e.buf.WriteByte(0)
	}
	e.ctx.Offset += p
}

func (e *encoder) write(p []byte) {
	e.buf.Write(p)
	e.ctx.Offset += len(p)
}

// EncodeMulti encodes a sequence of values whose combined signature is
// sig (a concatenation of single types), returning the serialized bytes.
func EncodeMulti(ctx Context, sig Signature, vs []interface{}, fds *[]*os.File) ([]byte, error) {
	e := newEncoder(ctx, fds)
	rest := sig.str
	for _, v := range vs {
		s, next, err := nextSingle(rest)
		if err != nil {
			return nil, err
		}
		if err := e.encode(s, reflect.ValueOf(v)); err != nil {
			return nil, err
		}
		rest = next
	}
	return e.buf.Bytes(), nil
}

// nextSingle splits one complete single type off the front of sig.
func nextSingle(sig string) (single, rest string, err error) {
	rest, err = validateSingle(sig)
	if err != nil {
		return "", "", err
	}
	return sig[:len(sig)-len(rest)], rest, nil
}

func (e *encoder) encode(sig string, v reflect.Value) error {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	c := sig[0]
	switch c {
	case 'y':
		e.write([]byte{byte(valUint(v))})
		return nil
	case 'b':
		e.pad(4)
		var n uint32
		if v.Kind() == reflect.Bool && v.Bool() {
			n = 1
		} else if v.Kind() != reflect.Bool && valUint(v) != 0 {
			n = 1
		}
		e.putU32(n)
		return nil
	case 'n':
		e.pad(2)
		e.putU16(uint16(valInt(v)))
		return nil
	case 'q':
		e.pad(2)
		e.putU16(uint16(valUint(v)))
		return nil
	case 'i':
		e.pad(4)
		e.putU32(uint32(valInt(v)))
		return nil
	case 'u':
		e.pad(4)
		e.putU32(uint32(valUint(v)))
		return nil
	case 'x':
		e.pad(8)
		e.putU64(uint64(valInt(v)))
		return nil
	case 't':
		e.pad(8)
		e.putU64(valUint(v))
		return nil
	case 'd':
		e.pad(8)
		e.putU64(math.Float64bits(valFloat(v)))
		return nil
	case 'h':
		e.pad(4)
		idx, err := e.attachFD(v)
		if err != nil {
			return err
		}
		e.putU32(idx)
		return nil
	case 's', 'o':
		return e.encodeString(valString(v))
	case 'g':
		return e.encodeSignatureValue(valString(v))
	case 'v':
		return e.encodeVariant(v)
	case 'a':
		if len(sig) >= 2 && sig[1] == '{' {
			return e.encodeDict(sig, v)
		}
		return e.encodeArray(sig, v)
	case 'm':
		return e.encodeMaybe(sig, v)
	case '(':
		return e.encodeStruct(sig, v)
	}
	return UnsupportedTypeError{sig}
}

func (e *encoder) putU16(n uint16) {
	b := make([]byte, 2)
	e.ctx.Order.PutUint16(b, n)
	e.write(b)
}
func (e *encoder) putU32(n uint32) {
	b := make([]byte, 4)
	e.ctx.Order.PutUint32(b, n)
	e.write(b)
}
func (e *encoder) putU64(n uint64) {
	b := make([]byte, 8)
	e.ctx.Order.PutUint64(b, n)
	e.write(b)
}

func (e *encoder) attachFD(v reflect.Value) (uint32, error) {
	if e.fds == nil {
		return 0, NotSupportedError{"unix file descriptor passing"}
	}
	switch f := v.Interface().(type) {
	case UnixFD:
		_ = f
	}
	if v.Kind() == reflect.Uint32 {
		return uint32(v.Uint()), nil
	}
	return uint32(valUint(v)), nil
}

func (e *encoder) encodeString(s string) error {
	if !utf8.ValidString(s) {
		return InvalidUtf8Error{}
	}
	switch e.ctx.Format {
	case FormatGVariant:
		e.write([]byte(s))
		e.write([]byte{0})
	default:
		e.pad(4)
		e.putU32(uint32(len(s)))
		e.write([]byte(s))
		e.write([]byte{0})
	}
	return nil
}

func (e *encoder) encodeSignatureValue(s string) error {
	switch e.ctx.Format {
	case FormatGVariant:
		e.write([]byte(s))
		e.write([]byte{0})
	default:
		e.write([]byte{byte(len(s))})
		e.write([]byte(s))
		e.write([]byte{0})
	}
	return nil
}

func (e *encoder) encodeVariant(v reflect.Value) error {
	var variant Variant
	if vv, ok := v.Interface().(Variant); ok {
		variant = vv
	} else {
		variant = MakeVariant(v.Interface())
	}
	if err := e.encodeSignatureValue(variant.sig.str); err != nil {
		return err
	}
	e.pad(alignment(variant.sig.str, e.ctx.Format))
	return e.encode(variant.sig.str, reflect.ValueOf(variant.Value()))
}

func (e *encoder) encodeArray(sig string, v reflect.Value) error {
	elemSig := sig[1:]
	elemAlign := alignment(elemSig, e.ctx.Format)
	if e.ctx.Format == FormatGVariant {
		return e.encodeArrayGVariant(elemSig, elemAlign, v)
	}
	e.pad(4)
	lenPos := e.buf.Len()
	e.putU32(0) // patched below
	e.pad(elemAlign)
	start := e.buf.Len()
	n := v.Len()
	for i := 0; i < n; i++ {
		if err := e.encode(elemSig, v.Index(i)); err != nil {
			return err
		}
	}
	written := e.buf.Len() - start
	out := e.buf.Bytes()
	e.ctx.Order.PutUint32(out[lenPos:lenPos+4], uint32(written))
	return nil
}

func (e *encoder) encodeDict(sig string, v reflect.Value) error {
	// sig is "a{KV}"
	kv := sig[2 : len(sig)-1]
	ksig, vrest, err := nextSingle(kv)
	if err != nil {
		return err
	}
	vsig := vrest
	if e.ctx.Format == FormatGVariant {
		return e.encodeDictGVariant(ksig, vsig, v)
	}
	e.pad(4)
	lenPos := e.buf.Len()
	e.putU32(0)
	e.pad(8)
	start := e.buf.Len()
	keys := v.MapKeys()
	for _, k := range keys {
		e.pad(8)
		if err := e.encode(ksig, k); err != nil {
			return err
		}
		if err := e.encode(vsig, v.MapIndex(k)); err != nil {
			return err
		}
	}
	written := e.buf.Len() - start
	out := e.buf.Bytes()
	e.ctx.Order.PutUint32(out[lenPos:lenPos+4], uint32(written))
	return nil
}

func (e *encoder) encodeStruct(sig string, v reflect.Value) error {
	e.pad(8)
	inner := sig[1 : len(sig)-1]
	rest := inner
	i := 0
	for rest != "" {
		s, next, err := nextSingle(rest)
		if err != nil {
			return err
		}
		var fv reflect.Value
		switch v.Kind() {
		case reflect.Struct:
			fv = v.Field(i)
		case reflect.Slice:
			fv = v.Index(i)
		default:
			return UnsupportedTypeError{sig}
		}
		if err := e.encode(s, fv); err != nil {
			return err
		}
		rest = next
		i++
	}
	return nil
}

func (e *encoder) encodeMaybe(sig string, v reflect.Value) error {
	if e.ctx.Format != FormatGVariant {
		return UnsupportedTypeError{sig}
	}
	elem := sig[1:]
	present := v.IsValid() && !(v.Kind() == reflect.Ptr && v.IsNil())
	if !present {
		e.write([]byte{0})
		return nil
	}
	if err := e.encode(elem, v); err != nil {
		return err
	}
	if alignment(elem, e.ctx.Format) == 1 {
		e.write([]byte{0xff})
	}
	return nil
}

// valInt/valUint/valFloat/valString coerce a reflect.Value of any
// compatible kind into the primitive needed for encoding, so callers may
// pass named types (ObjectPath, custom int aliases, etc).
func valInt(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	}
	return 0
}

func valUint(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int())
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	}
	return 0
}

func valFloat(v reflect.Value) float64 {
	if v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64 {
		return v.Float()
	}
	return 0
}

func valString(v reflect.Value) string {
	if v.IsValid() {
		if s, ok := v.Interface().(Signature); ok {
			return s.str
		}
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return ""
}
