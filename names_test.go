package dbus

import "testing"

func TestValidateInterfaceName(t *testing.T) {
	valid := []string{"org.freedesktop.DBus", "com.example.Foo.Bar"}
	invalid := []string{"", "NoDot", "1.Leading", "org.freedesktop.", "bad-hyphen.Name"}
	for _, s := range valid {
		if !validateInterfaceName(s) {
			t.Errorf("validateInterfaceName(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if validateInterfaceName(s) {
			t.Errorf("validateInterfaceName(%q) = true, want false", s)
		}
	}
}

func TestValidateMemberName(t *testing.T) {
	valid := []string{"Ping", "Get_All", "a"}
	invalid := []string{"", "1Leading", "has.dot", "has-hyphen"}
	for _, s := range valid {
		if !validateMemberName(s) {
			t.Errorf("validateMemberName(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if validateMemberName(s) {
			t.Errorf("validateMemberName(%q) = true, want false", s)
		}
	}
}

func TestValidateWellKnownName(t *testing.T) {
	valid := []string{"org.freedesktop.NetworkManager", "com.example.My-App.Service"}
	invalid := []string{"", "NoDot", ":1.2"}
	for _, s := range valid {
		if !validateWellKnownName(s) {
			t.Errorf("validateWellKnownName(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if validateWellKnownName(s) {
			t.Errorf("validateWellKnownName(%q) = true, want false", s)
		}
	}
}

func TestValidateUniqueName(t *testing.T) {
	valid := []string{"org.freedesktop.DBus", ":1.42", ":1.9-foo"}
	invalid := []string{"", "1.42", "org.freedesktop.NotUnique"}
	for _, s := range valid {
		if !validateUniqueName(s) {
			t.Errorf("validateUniqueName(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if validateUniqueName(s) {
			t.Errorf("validateUniqueName(%q) = true, want false", s)
		}
	}
}

func TestValidateObjectPath(t *testing.T) {
	valid := []string{"/", "/org/freedesktop/DBus", "/a/b_1/C2"}
	invalid := []string{"", "noSlash", "/trailing/", "/double//slash", "/bad-hyphen"}
	for _, s := range valid {
		if !validateObjectPath(s) {
			t.Errorf("validateObjectPath(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if validateObjectPath(s) {
			t.Errorf("validateObjectPath(%q) = true, want false", s)
		}
	}
	if !ObjectPath("/org/bluez").IsValid() {
		t.Error("ObjectPath.IsValid should delegate to validateObjectPath")
	}
}
