package dbus

import (
	"math"
	"os"
	"unicode/utf8"
)

// Strict controls whether decoding rejects non-zero alignment padding
// (§4.C "Alignment"). Off by default to tolerate peers that, like many
// real bus daemons, never bothered to zero it.
var Strict = false

// decoder deserializes values against a signature, tracking ctx.Offset
// for alignment and borrowing slices into the source buffer where
// possible (§4.C).
type decoder struct {
	data []byte
	pos  int
	ctx  Context
	fds  []*os.File
}

func newDecoder(data []byte, ctx Context) *decoder {
	return &decoder{data: data, ctx: ctx}
}

// DecodeMulti decodes a sequence of values whose combined signature is
// sig from data, returning one decoded value per single type in sig.
func DecodeMulti(ctx Context, sig Signature, data []byte, fds []*os.File) ([]interface{}, error) {
	d := newDecoder(data, ctx)
	d.fds = fds
	var out []interface{}
	rest := sig.str
	for rest != "" {
		s, next, err := nextSingle(rest)
		if err != nil {
			return nil, err
		}
		v, err := d.decodeValue(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		rest = next
	}
	return out, nil
}

func (d *decoder) need(n int) error {
	if len(d.data)-d.pos < n {
		return InsufficientDataError{Want: n, Have: len(d.data) - d.pos}
	}
	return nil
}

func (d *decoder) pad(n int) error {
	p := d.ctx.align(n)
	if err := d.need(p); err != nil {
		return err
	}
	if Strict {
		for i := 0; i < p; i++ {
			if d.data[d.pos+i] != 0 {
				return PaddingNot0Error{}
			}
		}
	}
	d.pos += p
	d.ctx.Offset += p
	return nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	d.ctx.Offset += n
	return b, nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.ctx.Order.Uint16(b), nil
}
func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.ctx.Order.Uint32(b), nil
}
func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.ctx.Order.Uint64(b), nil
}

func (d *decoder) decodeValue(sig string) (interface{}, error) {
	switch sig[0] {
	case 'y':
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case 'b':
		if err := d.pad(4); err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		if n > 1 {
			return nil, IncorrectValueError{"boolean not 0 or 1"}
		}
		return n == 1, nil
	case 'n':
		if err := d.pad(2); err != nil {
			return nil, err
		}
		n, err := d.u16()
		return int16(n), err
	case 'q':
		if err := d.pad(2); err != nil {
			return nil, err
		}
		return d.u16()
	case 'i':
		if err := d.pad(4); err != nil {
			return nil, err
		}
		n, err := d.u32()
		return int32(n), err
	case 'u':
		if err := d.pad(4); err != nil {
			return nil, err
		}
		return d.u32()
	case 'x':
		if err := d.pad(8); err != nil {
			return nil, err
		}
		n, err := d.u64()
		return int64(n), err
	case 't':
		if err := d.pad(8); err != nil {
			return nil, err
		}
		return d.u64()
	case 'd':
		if err := d.pad(8); err != nil {
			return nil, err
		}
		n, err := d.u64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(n), nil
	case 'h':
		if err := d.pad(4); err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		if int(n) < len(d.fds) {
			return d.fds[n], nil
		}
		return UnixFDIndex(n), nil
	case 's':
		s, err := d.decodeString()
		return s, err
	case 'o':
		s, err := d.decodeString()
		if err != nil {
			return nil, err
		}
		return ObjectPath(s), nil
	case 'g':
		s, err := d.decodeSignatureString()
		if err != nil {
			return nil, err
		}
		return Signature{s}, nil
	case 'v':
		return d.decodeVariant()
	case 'a':
		if len(sig) >= 2 && sig[1] == '{' {
			return d.decodeDict(sig)
		}
		return d.decodeArray(sig)
	case 'm':
		return d.decodeMaybe(sig)
	case '(':
		return d.decodeStruct(sig)
	}
	return nil, UnsupportedTypeError{sig}
}

func (d *decoder) decodeString() (string, error) {
	if d.ctx.Format == FormatGVariant {
		return d.decodeNulTerminated()
	}
	if err := d.pad(4); err != nil {
		return "", err
	}
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	nul, err := d.take(1)
	if err != nil {
		return "", err
	}
	if nul[0] != 0 {
		return "", IncorrectValueError{"string missing terminating NUL"}
	}
	if !utf8.Valid(b) {
		return "", InvalidUtf8Error{}
	}
	return string(b), nil
}

func (d *decoder) decodeSignatureString() (string, error) {
	if d.ctx.Format == FormatGVariant {
		return d.decodeNulTerminated()
	}
	nb, err := d.take(1)
	if err != nil {
		return "", err
	}
	n := int(nb[0])
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	nul, err := d.take(1)
	if err != nil {
		return "", err
	}
	if nul[0] != 0 {
		return "", IncorrectValueError{"signature missing terminating NUL"}
	}
	return string(b), nil
}

func (d *decoder) decodeNulTerminated() (string, error) {
	start := d.pos
	for d.pos < len(d.data) {
		if d.data[d.pos] == 0 {
			s := string(d.data[start:d.pos])
			d.pos++
			d.ctx.Offset += d.pos - start
			if !utf8.ValidString(s) {
				return "", InvalidUtf8Error{}
			}
			return s, nil
		}
		d.pos++
	}
	return "", InsufficientDataError{Want: 1, Have: 0}
}

func (d *decoder) decodeVariant() (Variant, error) {
	sigStr, err := d.decodeSignatureString()
	if err != nil {
		return Variant{}, err
	}
	sig, err := ParseSignature(sigStr)
	if err != nil {
		return Variant{}, err
	}
	if err := d.pad(alignment(sig.str, d.ctx.Format)); err != nil {
		return Variant{}, err
	}
	v, err := d.decodeValue(sig.str)
	if err != nil {
		return Variant{}, err
	}
	return Variant{sig: sig, value: v}, nil
}

func (d *decoder) decodeArray(sig string) (interface{}, error) {
	elemSig := sig[1:]
	if d.ctx.Format == FormatGVariant {
		return d.decodeArrayGVariant(elemSig)
	}
	if err := d.pad(4); err != nil {
		return nil, err
	}
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if err := d.pad(alignment(elemSig, d.ctx.Format)); err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	var out []interface{}
	for d.pos < end {
		v, err := d.decodeValue(elemSig)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if out == nil {
		out = []interface{}{}
	}
	return out, nil
}

func (d *decoder) decodeDict(sig string) (interface{}, error) {
	kv := sig[2 : len(sig)-1]
	ksig, vsig, err := nextSingle(kv)
	if err != nil {
		return nil, err
	}
	if d.ctx.Format == FormatGVariant {
		return d.decodeDictGVariant(ksig, vsig)
	}
	if err := d.pad(4); err != nil {
		return nil, err
	}
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if err := d.pad(8); err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	out := make(map[interface{}]interface{})
	for d.pos < end {
		if err := d.pad(8); err != nil {
			return nil, err
		}
		k, err := d.decodeValue(ksig)
		if err != nil {
			return nil, err
		}
		v, err := d.decodeValue(vsig)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (d *decoder) decodeStruct(sig string) (interface{}, error) {
	if err := d.pad(8); err != nil {
		return nil, err
	}
	inner := sig[1 : len(sig)-1]
	rest := inner
	var out []interface{}
	for rest != "" {
		s, next, err := nextSingle(rest)
		if err != nil {
			return nil, err
		}
		v, err := d.decodeValue(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		rest = next
	}
	return out, nil
}

func (d *decoder) decodeMaybe(sig string) (interface{}, error) {
	if d.ctx.Format != FormatGVariant {
		return nil, UnsupportedTypeError{sig}
	}
	elem := sig[1:]
	if d.pos >= len(d.data) {
		return nil, InsufficientDataError{Want: 1, Have: 0}
	}
	// encodeMaybe writes an absent value as a single 0x00 byte, so a lone
	// remaining 0x00 byte decodes as "nothing"; an empty remainder is the
	// InsufficientDataError above.
	remaining := len(d.data) - d.pos
	if remaining == 1 && d.data[d.pos] == 0 {
		d.pos++
		d.ctx.Offset++
		return nil, nil
	}
	v, err := d.decodeValue(elem)
	if err != nil {
		return nil, err
	}
	if alignment(elem, d.ctx.Format) == 1 && d.pos < len(d.data) {
		d.pos++ // consume the 0xff present-marker byte written by encode
		d.ctx.Offset++
	}
	return v, nil
}
