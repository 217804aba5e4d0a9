package dbus

import "testing"

// exportFakeBus registers a minimal org.freedesktop.DBus implementation on
// server's own bus-object path, letting the bus.go wrappers be exercised
// without a real bus daemon.
func exportFakeBus(t *testing.T, server *Conn) {
	t.Helper()
	err := server.Export("/org/freedesktop/DBus", Interface{
		Name: "org.freedesktop.DBus",
		Methods: map[string]Method{
			"RequestName": {Call: func(args []interface{}) ([]interface{}, error) {
				return []interface{}{uint32(NameReplyPrimaryOwner)}, nil
			}},
			"GetId": {Call: func(args []interface{}) ([]interface{}, error) {
				return []interface{}{"fake-bus-id"}, nil
			}},
			"AddMatch": {Call: func(args []interface{}) ([]interface{}, error) {
				return nil, nil
			}},
			"ListNames": {Call: func(args []interface{}) ([]interface{}, error) {
				return []interface{}{[]string{":1.1", "org.freedesktop.DBus"}}, nil
			}},
			"NameHasOwner": {Call: func(args []interface{}) ([]interface{}, error) {
				name, _ := args[0].(string)
				return []interface{}{name == "org.freedesktop.DBus"}, nil
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBusRequestName(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()
	exportFakeBus(t, server)

	reply, err := client.RequestName("org.example.Foo", FlagDoNotQueue)
	if err != nil {
		t.Fatal(err)
	}
	if reply != NameReplyPrimaryOwner {
		t.Errorf("reply = %v, want NameReplyPrimaryOwner", reply)
	}
}

func TestBusGetId(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()
	exportFakeBus(t, server)

	id, err := client.GetId()
	if err != nil {
		t.Fatal(err)
	}
	if id != "fake-bus-id" {
		t.Errorf("id = %q, want fake-bus-id", id)
	}
}

func TestBusListNames(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()
	exportFakeBus(t, server)

	names, err := client.ListNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[1] != "org.freedesktop.DBus" {
		t.Errorf("names = %#v", names)
	}
}

func TestBusNameHasOwner(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()
	exportFakeBus(t, server)

	has, err := client.NameHasOwner("org.freedesktop.DBus")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("expected NameHasOwner to report true for the bus name itself")
	}
}
