package machineid

import "testing"

func TestNormalizeValid(t *testing.T) {
	got, err := normalize([]byte("0123456789abcdef0123456789ABCDEF\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := "0123456789abcdef0123456789abcdef"
	if got != want {
		t.Errorf("normalize = %q, want %q", got, want)
	}
}

func TestNormalizeStripsHyphens(t *testing.T) {
	// The Windows HwProfileGuid and the kern.uuid/kern.hostuuid sysctl
	// values come hyphenated.
	got, err := normalize([]byte("01234567-89ab-cdef-0123-456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	want := "0123456789abcdef0123456789abcdef"
	if got != want {
		t.Errorf("normalize = %q, want %q", got, want)
	}
}

func TestNormalizeWrongLength(t *testing.T) {
	if _, err := normalize([]byte("deadbeef")); err == nil {
		t.Error("expected an error for a too-short id")
	}
}

func TestNormalizeNotHex(t *testing.T) {
	if _, err := normalize([]byte("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")); err == nil {
		t.Error("expected an error for non-hex input")
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := errNotFound([]string{"/etc/machine-id", "/var/lib/dbus/machine-id"})
	nfe, ok := err.(NotFoundError)
	if !ok {
		t.Fatalf("errNotFound returned %T, want NotFoundError", err)
	}
	if len(nfe.Tried) != 2 {
		t.Errorf("Tried = %v", nfe.Tried)
	}
	if nfe.Error() == "" {
		t.Error("Error() returned empty string")
	}
}
