package dbus

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, sigStr string, vs []interface{}, out []interface{}) {
	t.Helper()
	sig, err := ParseSignature(sigStr)
	if err != nil {
		t.Fatalf("ParseSignature(%q): %v", sigStr, err)
	}
	ctx := Context{Order: binary.LittleEndian, Format: FormatDBus}
	b, err := EncodeMulti(ctx, sig, vs, nil)
	if err != nil {
		t.Fatalf("EncodeMulti: %v", err)
	}
	decoded, err := DecodeMulti(ctx, sig, b, nil)
	if err != nil {
		t.Fatalf("DecodeMulti: %v", err)
	}
	if len(decoded) != len(out) {
		t.Fatalf("decoded %d values, want %d: %#v", len(decoded), len(out), decoded)
	}
	for i := range out {
		if !reflect.DeepEqual(decoded[i], out[i]) {
			t.Errorf("value %d = %#v, want %#v", i, decoded[i], out[i])
		}
	}
}

func TestCodecBasicTypes(t *testing.T) {
	roundTrip(t, "ybnqiuxtds",
		[]interface{}{byte(7), true, int16(-3), uint16(4), int32(-5), uint32(6), int64(-7), uint64(8), 1.5},
		[]interface{}{byte(7), true, int16(-3), uint16(4), int32(-5), uint32(6), int64(-7), uint64(8), 1.5})
}

func TestCodecStringObjectPathSignature(t *testing.T) {
	roundTrip(t, "sog",
		[]interface{}{"hello", ObjectPath("/a/b"), Signature{"ii"}},
		[]interface{}{"hello", ObjectPath("/a/b"), Signature{"ii"}})
}

func TestCodecArray(t *testing.T) {
	roundTrip(t, "ai",
		[]interface{}{[]int32{1, 2, 3}},
		[]interface{}{[]interface{}{int32(1), int32(2), int32(3)}})
}

func TestCodecEmptyArray(t *testing.T) {
	roundTrip(t, "ai",
		[]interface{}{[]int32{}},
		[]interface{}{[]interface{}{}})
}

func TestCodecDict(t *testing.T) {
	sig, err := ParseSignature("a{si}")
	if err != nil {
		t.Fatal(err)
	}
	ctx := Context{Order: binary.LittleEndian, Format: FormatDBus}
	in := map[string]int32{"a": 1, "b": 2}
	b, err := EncodeMulti(ctx, sig, []interface{}{in}, nil)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeMulti(ctx, sig, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := decoded[0].(map[interface{}]interface{})
	if !ok {
		t.Fatalf("decoded dict is %T, want map[interface{}]interface{}", decoded[0])
	}
	if m["a"] != int32(1) || m["b"] != int32(2) {
		t.Errorf("decoded dict = %#v, want a:1 b:2", m)
	}
}

func TestCodecStruct(t *testing.T) {
	type pair struct {
		A int32
		B string
	}
	roundTrip(t, "(is)",
		[]interface{}{pair{A: 4, B: "x"}},
		[]interface{}{[]interface{}{int32(4), "x"}})
}

func TestCodecVariant(t *testing.T) {
	roundTrip(t, "v",
		[]interface{}{MakeVariant(int32(9))},
		[]interface{}{Variant{sig: Signature{"i"}, value: int32(9)}})
}

func TestCodecNestedArrayOfStruct(t *testing.T) {
	sig, err := ParseSignature("a(si)")
	if err != nil {
		t.Fatal(err)
	}
	ctx := Context{Order: binary.LittleEndian, Format: FormatDBus}
	type pair struct {
		S string
		I int32
	}
	in := []pair{{"a", 1}, {"bb", 2}}
	b, err := EncodeMulti(ctx, sig, []interface{}{in}, nil)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeMulti(ctx, sig, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := decoded[0].([]interface{})
	if !ok || len(arr) != 2 {
		t.Fatalf("decoded = %#v", decoded[0])
	}
}

func TestDecodeInsufficientData(t *testing.T) {
	sig, _ := ParseSignature("i")
	ctx := Context{Order: binary.LittleEndian, Format: FormatDBus}
	if _, err := DecodeMulti(ctx, sig, []byte{1, 2}, nil); err == nil {
		t.Error("expected InsufficientDataError decoding a truncated int32")
	}
}

func TestEncodeInvalidUtf8(t *testing.T) {
	sig, _ := ParseSignature("s")
	ctx := Context{Order: binary.LittleEndian, Format: FormatDBus}
	_, err := EncodeMulti(ctx, sig, []interface{}{string([]byte{0xff, 0xfe})}, nil)
	if err == nil {
		t.Error("expected InvalidUtf8Error encoding an invalid UTF-8 string")
	}
}

func TestBooleanOutOfRange(t *testing.T) {
	sig, _ := ParseSignature("b")
	ctx := Context{Order: binary.LittleEndian, Format: FormatDBus}
	b, err := EncodeMulti(ctx, sig, []interface{}{uint32(1)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// corrupt the encoded value to something other than 0 or 1
	b[0] = 2
	if _, err := DecodeMulti(ctx, sig, b, nil); err == nil {
		t.Error("expected IncorrectValueError for a boolean byte outside {0,1}")
	}
}

func TestGVariantStringRoundTrip(t *testing.T) {
	sig, _ := ParseSignature("s")
	ctx := Context{Order: binary.LittleEndian, Format: FormatGVariant}
	b, err := EncodeMulti(ctx, sig, []interface{}{"hi"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b[len(b)-1] != 0 {
		t.Error("gvariant strings must be NUL-terminated with no length prefix")
	}
	decoded, err := DecodeMulti(ctx, sig, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0] != "hi" {
		t.Errorf("decoded = %v, want hi", decoded[0])
	}
}
