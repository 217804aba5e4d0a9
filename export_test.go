package dbus

import (
	"strings"
	"testing"
	"time"
)

func newPropertyInterface(value *int32) Interface {
	return Interface{
		Name: "org.example.Light",
		Properties: map[string]Property{
			"Brightness": {
				Signature: Signature{"i"},
				Access:    PropertyReadWrite,
				Emits:     EmitsChangedTrue,
				Get:       func() (interface{}, error) { return *value, nil },
				Set: func(v Variant) error {
					n, _ := v.Value().(int32)
					*value = n
					return nil
				},
			},
		},
	}
}

func TestPropertiesGetSet(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	value := int32(10)
	if err := server.Export("/org/example/Light1", newPropertyInterface(&value)); err != nil {
		t.Fatal(err)
	}

	obj := client.Object("", "/org/example/Light1")
	var got int32
	call := obj.Call("org.freedesktop.DBus.Properties.Get", 0, "org.example.Light", "Brightness")
	if call.Err != nil {
		t.Fatal(call.Err)
	}
	var v Variant
	if err := call.Store(&v); err != nil {
		t.Fatal(err)
	}
	got, _ = v.Value().(int32)
	if got != 10 {
		t.Errorf("Brightness = %d, want 10", got)
	}

	setCall := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.example.Light", "Brightness", MakeVariant(int32(50)))
	if setCall.Err != nil {
		t.Fatal(setCall.Err)
	}
	if value != 50 {
		t.Errorf("value after Set = %d, want 50", value)
	}
}

func TestPropertiesGetAll(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	value := int32(7)
	server.Export("/org/example/Light1", newPropertyInterface(&value))

	obj := client.Object("", "/org/example/Light1")
	call := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, "org.example.Light")
	if call.Err != nil {
		t.Fatal(call.Err)
	}
	var all map[string]Variant
	if err := call.Store(&all); err != nil {
		t.Fatal(err)
	}
	bv, ok := all["Brightness"]
	if !ok {
		t.Fatal("GetAll did not include Brightness")
	}
	if n, _ := bv.Value().(int32); n != 7 {
		t.Errorf("Brightness = %v, want 7", n)
	}
}

func TestPropertiesSetReadOnly(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	server.Export("/org/example/Light1", Interface{
		Name: "org.example.Light",
		Properties: map[string]Property{
			"Brightness": {
				Signature: Signature{"i"},
				Access:    PropertyRead,
				Get:       func() (interface{}, error) { return int32(1), nil },
			},
		},
	})

	obj := client.Object("", "/org/example/Light1")
	call := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.example.Light", "Brightness", MakeVariant(int32(2)))
	re, ok := call.Err.(RemoteError)
	if !ok || re.Name != "org.freedesktop.DBus.Error.PropertyReadOnly" {
		t.Errorf("Err = %#v, want PropertyReadOnly", call.Err)
	}
}

func TestPropertiesChangedSignal(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	value := int32(1)
	server.Export("/org/example/Light1", newPropertyInterface(&value))

	ch := make(chan *Signal, 4)
	client.Signal(ch)

	obj := client.Object("", "/org/example/Light1")
	setCall := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.example.Light", "Brightness", MakeVariant(int32(99)))
	if setCall.Err != nil {
		t.Fatal(setCall.Err)
	}

	select {
	case sig := <-ch:
		if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
			t.Fatalf("signal = %#v", sig)
		}
		if sig.Body[0] != "org.example.Light" {
			t.Errorf("iface arg = %v", sig.Body[0])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PropertiesChanged")
	}
}

func TestObjectManagerGetManagedObjects(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	if err := server.ExportObjectManager("/org/example"); err != nil {
		t.Fatal(err)
	}
	value := int32(3)
	if err := server.Export("/org/example/Light1", newPropertyInterface(&value)); err != nil {
		t.Fatal(err)
	}

	obj := client.Object("", "/org/example")
	call := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if call.Err != nil {
		t.Fatal(call.Err)
	}
	var out map[ObjectPath]map[string]map[string]Variant
	if err := call.Store(&out); err != nil {
		t.Fatal(err)
	}
	ifaces, ok := out["/org/example/Light1"]
	if !ok {
		t.Fatalf("managed objects = %#v, missing /org/example/Light1", out)
	}
	if _, ok := ifaces["org.example.Light"]; !ok {
		t.Errorf("ifaces = %#v", ifaces)
	}
}

func TestExportFiresInterfacesAdded(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	server.ExportObjectManager("/org/example")

	ch := make(chan *Signal, 4)
	client.Signal(ch)

	value := int32(1)
	if err := server.Export("/org/example/Light1", newPropertyInterface(&value)); err != nil {
		t.Fatal(err)
	}

	select {
	case sig := <-ch:
		if sig.Name != "org.freedesktop.DBus.ObjectManager.InterfacesAdded" {
			t.Fatalf("signal = %#v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for InterfacesAdded")
	}
}

func TestIntrospect(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	value := int32(1)
	server.Export("/org/example/Light1", newPropertyInterface(&value))

	obj := client.Object("", "/org/example/Light1")
	call := obj.Call("org.freedesktop.DBus.Introspectable.Introspect", 0)
	if call.Err != nil {
		t.Fatal(call.Err)
	}
	var xmlDoc string
	if err := call.Store(&xmlDoc); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(xmlDoc, "org.example.Light") {
		t.Errorf("introspection XML missing the exported interface: %s", xmlDoc)
	}
	if !strings.Contains(xmlDoc, "Brightness") {
		t.Errorf("introspection XML missing the exported property: %s", xmlDoc)
	}
}

func TestUnexportFiresInterfacesRemoved(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	server.ExportObjectManager("/org/example")
	value := int32(1)
	server.Export("/org/example/Light1", newPropertyInterface(&value))

	ch := make(chan *Signal, 4)
	client.Signal(ch)

	if err := server.Unexport("/org/example/Light1", "org.example.Light"); err != nil {
		t.Fatal(err)
	}

	select {
	case sig := <-ch:
		if sig.Name != "org.freedesktop.DBus.ObjectManager.InterfacesRemoved" {
			t.Fatalf("signal = %#v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for InterfacesRemoved")
	}
}
