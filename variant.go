package dbus

import "fmt"

// IncorrectTypeError is returned by a Variant's typed accessors when the
// requested type does not match the variant's actual signature (§9
// "Reflective Variant").
type IncorrectTypeError struct {
	Want string
	Have string
}

func (e IncorrectTypeError) Error() string {
	return fmt.Sprintf("dbus: variant holds %q, not %q", e.Have, e.Want)
}

// Variant holds a value together with its D-Bus signature, used to
// encode/decode the 'v' type and for reflective access to dynamically
// typed message bodies (§3 "Variant", §9 "Reflective Variant").
type Variant struct {
	sig   Signature
	value interface{}
}

// MakeVariant wraps v together with its computed signature. It panics if
// v's type cannot be represented on the wire, mirroring the teacher's
// MakeVariant, which is only ever called with statically known types.
func MakeVariant(v interface{}) Variant {
	sig, err := signatureOfValue(v)
	if err != nil {
		panic(err)
	}
	return Variant{sig: sig, value: v}
}

// MakeVariantWithSignature wraps v with an explicitly provided signature,
// for cases (e.g. empty arrays, gvariant maybe types) where the value's
// Go type alone does not pin down the signature.
func MakeVariantWithSignature(v interface{}, sig Signature) Variant {
	return Variant{sig: sig, value: v}
}

// Signature returns the variant's signature.
func (v Variant) Signature() Signature { return v.sig }

// Value returns the variant's dynamically typed value.
func (v Variant) Value() interface{} { return v.value }

// String renders the variant as "@sig value" (e.g. "@i 3"), used by the teacher's
// Introspect/debug paths.
func (v *Variant) String() string {
	return fmt.Sprintf("@%s %v", v.sig.str, v.Value())
}

// Store decodes the variant's value into dest, the way (*Call).Store
// decodes a whole body; dest must be a non-nil pointer.
func (v *Variant) Store(dest interface{}) error {
	return storeOne(v.Value(), dest)
}

// variantAs type-asserts v's value to T, or reports IncorrectTypeError
// naming the signature the caller expected versus the one actually held.
func variantAs[T any](v *Variant, want string) (T, error) {
	t, ok := v.value.(T)
	if !ok {
		var zero T
		return zero, IncorrectTypeError{Want: want, Have: v.sig.str}
	}
	return t, nil
}

// AsString returns v's value as a string, or IncorrectTypeError if v does
// not hold one (§9 "lazy typed accessors that fail with IncorrectType").
func (v *Variant) AsString() (string, error) { return variantAs[string](v, "s") }

// AsObjectPath returns v's value as an ObjectPath.
func (v *Variant) AsObjectPath() (ObjectPath, error) { return variantAs[ObjectPath](v, "o") }

// AsSignature returns v's value as a Signature.
func (v *Variant) AsSignature() (Signature, error) { return variantAs[Signature](v, "g") }

// AsBool returns v's value as a bool.
func (v *Variant) AsBool() (bool, error) { return variantAs[bool](v, "b") }

// AsByte returns v's value as a byte.
func (v *Variant) AsByte() (byte, error) { return variantAs[byte](v, "y") }

// AsInt16 returns v's value as an int16.
func (v *Variant) AsInt16() (int16, error) { return variantAs[int16](v, "n") }

// AsUint16 returns v's value as a uint16.
func (v *Variant) AsUint16() (uint16, error) { return variantAs[uint16](v, "q") }

// AsInt32 returns v's value as an int32.
func (v *Variant) AsInt32() (int32, error) { return variantAs[int32](v, "i") }

// AsUint32 returns v's value as a uint32.
func (v *Variant) AsUint32() (uint32, error) { return variantAs[uint32](v, "u") }

// AsInt64 returns v's value as an int64.
func (v *Variant) AsInt64() (int64, error) { return variantAs[int64](v, "x") }

// AsUint64 returns v's value as a uint64.
func (v *Variant) AsUint64() (uint64, error) { return variantAs[uint64](v, "t") }

// AsFloat64 returns v's value as a float64.
func (v *Variant) AsFloat64() (float64, error) { return variantAs[float64](v, "d") }
