package dbus

import (
	"context"
	"testing"
	"time"
)

// newConnPair returns two connected, ready Conns for exercising the
// connection core, object server and call path without a bus daemon.
func newConnPair() (client, server *Conn) {
	return Pipe()
}

func TestConnCallRoundTrip(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	err := server.Export("/org/example/Foo", Interface{
		Name: "org.example.Foo",
		Methods: map[string]Method{
			"Double": {
				In:  Signature{"i"},
				Out: Signature{"i"},
				Call: func(args []interface{}) ([]interface{}, error) {
					n := args[0].(int32)
					return []interface{}{n * 2}, nil
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	obj := client.Object("", "/org/example/Foo")
	var result int32
	call := obj.Call("org.example.Foo.Double", 0, int32(21))
	if call.Err != nil {
		t.Fatal(call.Err)
	}
	if err := call.Store(&result); err != nil {
		t.Fatal(err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}

func TestConnCallRemoteError(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	server.Export("/org/example/Foo", Interface{
		Name: "org.example.Foo",
		Methods: map[string]Method{
			"Fail": {
				Call: func(args []interface{}) ([]interface{}, error) {
					return nil, RemoteError{Name: "org.example.Foo.Error.Boom", Body: []interface{}{"kaboom"}}
				},
			},
		},
	})

	obj := client.Object("", "/org/example/Foo")
	call := obj.Call("org.example.Foo.Fail", 0)
	if call.Err == nil {
		t.Fatal("expected an error")
	}
	re, ok := call.Err.(RemoteError)
	if !ok {
		t.Fatalf("Err = %#v (%T), want RemoteError", call.Err, call.Err)
	}
	if re.Name != "org.example.Foo.Error.Boom" || re.Error() != "kaboom" {
		t.Errorf("RemoteError = %#v", re)
	}
}

func TestConnCallUnknownMethod(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	server.Export("/org/example/Foo", Interface{Name: "org.example.Foo"})

	obj := client.Object("", "/org/example/Foo")
	call := obj.Call("org.example.Foo.Missing", 0)
	re, ok := call.Err.(RemoteError)
	if !ok || re.Name != "org.freedesktop.DBus.Error.UnknownMethod" {
		t.Errorf("Err = %#v, want UnknownMethod RemoteError", call.Err)
	}
}

func TestConnCallWithContextTimeout(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	block := make(chan struct{})
	defer close(block)
	server.Export("/org/example/Foo", Interface{
		Name: "org.example.Foo",
		Methods: map[string]Method{
			"Hang": {Call: func(args []interface{}) ([]interface{}, error) {
				<-block
				return nil, nil
			}},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	obj := client.Object("", "/org/example/Foo")
	err := obj.CallWithContext(ctx, "org.example.Foo.Hang", 0)
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestConnSignalSubscribe(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	ch := make(chan *Signal, 1)
	client.Signal(ch)

	if err := server.EmitSignal("/org/example/Foo", "org.example.Foo", "Changed", "now"); err != nil {
		t.Fatal(err)
	}

	select {
	case sig := <-ch:
		if sig.Name != "org.example.Foo.Changed" || sig.Body[0] != "now" {
			t.Errorf("signal = %#v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestConnPeerPing(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()
	_ = server

	obj := client.Object("", "/anything")
	call := obj.Call("org.freedesktop.DBus.Peer.Ping", 0)
	if call.Err != nil {
		t.Fatal(call.Err)
	}
}

func TestConnClosePendingCalls(t *testing.T) {
	client, server := newConnPair()
	defer server.Close()

	block := make(chan struct{})
	server.Export("/org/example/Foo", Interface{
		Name: "org.example.Foo",
		Methods: map[string]Method{
			"Hang": {Call: func(args []interface{}) ([]interface{}, error) {
				<-block
				return nil, nil
			}},
		},
	})

	ch := make(chan *Call, 1)
	obj := client.Object("", "/org/example/Foo")
	obj.Go("org.example.Foo.Hang", 0, ch)

	client.Close()
	close(block)

	select {
	case call := <-ch:
		if _, ok := call.Err.(ClosedError); !ok {
			t.Errorf("Err = %#v, want ClosedError", call.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the pending call to be failed")
	}
}

// TestConnPeerUIDNotSupportedOverPipe confirms PeerUID/PeerPID report
// NotSupportedError rather than panicking or hanging when the transport
// (the in-memory pipe used by every test in this file) has no notion of
// peer credentials — unlike unixTransport, which implements
// localCredentialer.
func TestConnPeerUIDNotSupportedOverPipe(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	if _, err := client.PeerUID(); err == nil {
		t.Fatal("expected NotSupportedError, got nil")
	} else if _, ok := err.(NotSupportedError); !ok {
		t.Errorf("err = %#v (%T), want NotSupportedError", err, err)
	}

	if _, err := client.PeerPID(); err == nil {
		t.Fatal("expected NotSupportedError, got nil")
	} else if _, ok := err.(NotSupportedError); !ok {
		t.Errorf("err = %#v (%T), want NotSupportedError", err, err)
	}
}

// TestConnSerialInterfaceRepliesInArrivalOrder exercises a default
// (non-Concurrent) interface where the first call does more work than
// the second: replies must still come back in the order the calls were
// sent, not in the order their handlers happen to finish.
func TestConnSerialInterfaceRepliesInArrivalOrder(t *testing.T) {
	client, server := newConnPair()
	defer client.Close()
	defer server.Close()

	release := make(chan struct{})
	server.Export("/org/example/Foo", Interface{
		Name: "org.example.Foo",
		Methods: map[string]Method{
			"Slow": {Call: func(args []interface{}) ([]interface{}, error) {
				<-release
				return []interface{}{"slow"}, nil
			}},
			"Fast": {Call: func(args []interface{}) ([]interface{}, error) {
				return []interface{}{"fast"}, nil
			}},
		},
	})

	obj := client.Object("", "/org/example/Foo")
	slowCh := make(chan *Call, 1)
	fastCh := make(chan *Call, 1)
	obj.Go("org.example.Foo.Slow", 0, slowCh)
	obj.Go("org.example.Foo.Fast", 0, fastCh)

	select {
	case <-fastCh:
		t.Fatal("Fast's reply arrived before Slow's, serial ordering was not honored")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case call := <-slowCh:
		if call.Err != nil {
			t.Fatal(call.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Slow's reply")
	}
	select {
	case call := <-fastCh:
		if call.Err != nil {
			t.Fatal(call.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Fast's reply")
	}
}
