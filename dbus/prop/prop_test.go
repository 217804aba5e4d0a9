package prop

import (
	"testing"
	"time"

	"github.com/godbus-ng/dbus"
)

func TestNewExportsAndGet(t *testing.T) {
	client, server := dbus.Pipe()
	defer client.Close()
	defer server.Close()

	p, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {
			"Brightness": {Value: int32(10), Writable: true, Emit: EmitTrue},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	v, ok := p.Get("org.example.Light", "Brightness")
	if !ok || v != int32(10) {
		t.Errorf("Get = %v, %v, want 10, true", v, ok)
	}

	obj := client.Object("", "/org/example/Light1")
	var got dbus.Variant
	call := obj.Call("org.freedesktop.DBus.Properties.Get", 0, "org.example.Light", "Brightness")
	if call.Err != nil {
		t.Fatal(call.Err)
	}
	if err := call.Store(&got); err != nil {
		t.Fatal(err)
	}
	if n, _ := got.Value().(int32); n != 10 {
		t.Errorf("remote Get = %v, want 10", n)
	}
}

func TestSetOverBusUpdatesStoreAndEmits(t *testing.T) {
	client, server := dbus.Pipe()
	defer client.Close()
	defer server.Close()

	_, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {
			"Brightness": {Value: int32(1), Writable: true, Emit: EmitTrue},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ch := make(chan *dbus.Signal, 4)
	client.Signal(ch)

	obj := client.Object("", "/org/example/Light1")
	setCall := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.example.Light", "Brightness", dbus.MakeVariant(int32(88)))
	if setCall.Err != nil {
		t.Fatal(setCall.Err)
	}

	select {
	case sig := <-ch:
		if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
			t.Fatalf("signal = %#v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PropertiesChanged")
	}
}

func TestSetRejectsReadOnlyProperty(t *testing.T) {
	client, server := dbus.Pipe()
	defer client.Close()
	defer server.Close()

	_, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {
			"Brightness": {Value: int32(1), Writable: false},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	obj := client.Object("", "/org/example/Light1")
	call := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.example.Light", "Brightness", dbus.MakeVariant(int32(2)))
	if call.Err == nil {
		t.Fatal("expected an error setting a read-only property")
	}
}

func TestCallbackRunsAfterSet(t *testing.T) {
	client, server := dbus.Pipe()
	defer client.Close()
	defer server.Close()

	var seen *Change
	_, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {
			"Brightness": {
				Value:    int32(1),
				Writable: true,
				Emit:     EmitTrue,
				Callback: func(c *Change) error {
					seen = c
					return nil
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	obj := client.Object("", "/org/example/Light1")
	setCall := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.example.Light", "Brightness", dbus.MakeVariant(int32(42)))
	if setCall.Err != nil {
		t.Fatal(setCall.Err)
	}
	if seen == nil {
		t.Fatal("callback was not invoked")
	}
	if seen.Iface != "org.example.Light" || seen.Name != "Brightness" || seen.Value != int32(42) {
		t.Errorf("Change = %#v", seen)
	}
}

func TestSetMustUpdatesValueAndEmitsForNonConst(t *testing.T) {
	client, server := dbus.Pipe()
	defer client.Close()
	defer server.Close()

	p, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {
			"Brightness": {Value: int32(1), Writable: true, Emit: EmitTrue},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ch := make(chan *dbus.Signal, 4)
	client.Signal(ch)

	p.SetMust("org.example.Light", "Brightness", int32(9))

	if v, ok := p.Get("org.example.Light", "Brightness"); !ok || v != int32(9) {
		t.Errorf("Get after SetMust = %v, %v", v, ok)
	}

	select {
	case sig := <-ch:
		if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
			t.Fatalf("signal = %#v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PropertiesChanged from SetMust")
	}
}

func TestSetMustWithEmitConstDoesNotSignal(t *testing.T) {
	client, server := dbus.Pipe()
	defer client.Close()
	defer server.Close()

	p, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {
			"Model": {Value: "x100", Writable: false, Emit: EmitConst},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ch := make(chan *dbus.Signal, 4)
	client.Signal(ch)

	p.SetMust("org.example.Light", "Model", "x200")

	select {
	case sig := <-ch:
		t.Fatalf("unexpected signal for EmitConst property: %#v", sig)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetUnknownPropertyReturnsFalse(t *testing.T) {
	_, server := dbus.Pipe()
	defer server.Close()

	p, err := New(server, "/org/example/Light1", map[string]map[string]*Prop{
		"org.example.Light": {"Brightness": {Value: int32(1)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := p.Get("org.example.Light", "Missing"); ok {
		t.Error("expected Get to report false for an unknown property")
	}
	if _, ok := p.Get("org.example.Other", "Brightness"); ok {
		t.Error("expected Get to report false for an unknown interface")
	}
}
