package dbus

import "testing"

func TestStoreBasic(t *testing.T) {
	var i int32
	var s string
	if err := Store([]interface{}{int32(9), "hi"}, &i, &s); err != nil {
		t.Fatal(err)
	}
	if i != 9 || s != "hi" {
		t.Errorf("i=%d s=%q", i, s)
	}
}

func TestStoreWrongCount(t *testing.T) {
	var i int32
	if err := Store([]interface{}{int32(1), int32(2)}, &i); err == nil {
		t.Error("expected an error for mismatched body/retvalues length")
	}
}

func TestStoreIntoInterface(t *testing.T) {
	var v interface{}
	if err := Store([]interface{}{"anything"}, &v); err != nil {
		t.Fatal(err)
	}
	if v != "anything" {
		t.Errorf("v = %#v", v)
	}
}

func TestStoreSlice(t *testing.T) {
	var out []string
	src := []interface{}{[]interface{}{"a", "b", "c"}}
	if err := Store(src, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0] != "a" || out[2] != "c" {
		t.Errorf("out = %#v", out)
	}
}

func TestStoreMap(t *testing.T) {
	var out map[string]int32
	src := []interface{}{map[interface{}]interface{}{"a": int32(1), "b": int32(2)}}
	if err := Store(src, &out); err != nil {
		t.Fatal(err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Errorf("out = %#v", out)
	}
}

func TestStoreVariantPropertiesChangedShape(t *testing.T) {
	// Mirrors the generically decoded body of a PropertiesChanged signal:
	// a{sv} then as.
	var changed map[string]Variant
	var invalidated []string
	changedSrc := map[interface{}]interface{}{"Brightness": MakeVariant(int32(50))}
	invalidatedSrc := []interface{}{"Online"}
	if err := storeOne(changedSrc, &changed); err != nil {
		t.Fatal(err)
	}
	if err := storeOne(invalidatedSrc, &invalidated); err != nil {
		t.Fatal(err)
	}
	if changed["Brightness"].Value() != int32(50) {
		t.Errorf("changed = %#v", changed)
	}
	if len(invalidated) != 1 || invalidated[0] != "Online" {
		t.Errorf("invalidated = %#v", invalidated)
	}
}

func TestStoreStruct(t *testing.T) {
	type pair struct {
		A int32
		B string
	}
	var out pair
	src := []interface{}{[]interface{}{int32(4), "x"}}
	if err := Store(src, &out); err != nil {
		t.Fatal(err)
	}
	if out.A != 4 || out.B != "x" {
		t.Errorf("out = %#v", out)
	}
}

func TestStoreNilDestination(t *testing.T) {
	if err := storeOne("x", nil); err == nil {
		t.Error("expected an error storing into a nil destination")
	}
}

func TestStoreNonPointerDestination(t *testing.T) {
	var s string
	if err := storeOne("x", s); err == nil {
		t.Error("expected an error storing into a non-pointer destination")
	}
}
