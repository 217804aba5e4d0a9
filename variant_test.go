package dbus

import "testing"

func TestMakeVariant(t *testing.T) {
	v := MakeVariant(int32(5))
	if v.Signature().String() != "i" {
		t.Errorf("Signature() = %q, want %q", v.Signature().String(), "i")
	}
	if v.Value() != int32(5) {
		t.Errorf("Value() = %v, want 5", v.Value())
	}
}

func TestMakeVariantPanicsOnUnsupportedType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MakeVariant should panic for a type with no signature")
		}
	}()
	MakeVariant(make(chan int))
}

func TestVariantStore(t *testing.T) {
	v := MakeVariant("hello")
	var s string
	if err := v.Store(&s); err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Errorf("Store decoded %q, want %q", s, "hello")
	}
}

func TestMakeVariantWithSignature(t *testing.T) {
	v := MakeVariantWithSignature([]interface{}{}, Signature{"as"})
	if v.Signature().String() != "as" {
		t.Errorf("Signature() = %q, want %q", v.Signature().String(), "as")
	}
}

func TestVariantString(t *testing.T) {
	v := MakeVariant(int32(3))
	if got := v.String(); got != "@i 3" {
		t.Errorf("String() = %q, want %q", got, "@i 3")
	}
}

func TestVariantTypedAccessors(t *testing.T) {
	v := MakeVariant("hello")
	s, err := v.AsString()
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Errorf("AsString() = %q, want %q", s, "hello")
	}

	iv := MakeVariant(int32(42))
	n, err := iv.AsInt32()
	if err != nil {
		t.Fatal(err)
	}
	if n != 42 {
		t.Errorf("AsInt32() = %d, want 42", n)
	}
}

func TestVariantTypedAccessorWrongTypeReturnsIncorrectTypeError(t *testing.T) {
	v := MakeVariant(int32(42))
	_, err := v.AsString()
	ite, ok := err.(IncorrectTypeError)
	if !ok {
		t.Fatalf("err = %#v (%T), want IncorrectTypeError", err, err)
	}
	if ite.Want != "s" || ite.Have != "i" {
		t.Errorf("IncorrectTypeError = %#v", ite)
	}
}
