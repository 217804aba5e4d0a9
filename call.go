package dbus

import (
	"context"
	"strings"
	"time"
)

// Call represents a pending or completed method call.
type Call struct {
	Destination string
	Path        ObjectPath
	Method      string
	Args        []interface{}

	// Done receives the Call itself when the call completes.
	Done chan *Call

	// Err holds the error status after completion: a RemoteError if the
	// peer replied with an error message, or a transport/encoding error
	// otherwise.
	Err error

	// Body holds the reply body once the call is done. Structs decode as
	// a slice of empty interfaces.
	Body []interface{}

	start time.Time
}

// Store decodes the reply body into retvalues, or returns c.Err if the
// call failed.
func (c *Call) Store(retvalues ...interface{}) error {
	if c.Err != nil {
		return c.Err
	}
	return Store(c.Body, retvalues...)
}

// Object represents a remote object identified by a bus name and path, on
// which methods can be invoked and whose signals can be observed.
type Object struct {
	conn *Conn
	dest string
	path ObjectPath
}

// Call calls method on o and waits for its reply.
func (o *Object) Call(method string, flags Flags, args ...interface{}) *Call {
	call := o.Go(method, flags, make(chan *Call, 1), args...)
	<-call.Done
	return call
}

// CallWithContext calls method on o, returning early with ctx.Err() if ctx
// is done before the reply arrives. The call itself is not cancelled on
// the wire (D-Bus has no cancellation message); only the wait is abandoned.
func (o *Object) CallWithContext(ctx context.Context, method string, flags Flags, args ...interface{}) error {
	call := o.Go(method, flags, make(chan *Call, 1), args...)
	if call == nil {
		return nil
	}
	select {
	case <-call.Done:
		return call.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go calls method asynchronously and returns a *Call representing it. ch
// receives the same *Call once done; if nil, a buffered channel is
// allocated. ch must be buffered (or nil) or Go panics. If flags includes
// FlagNoReplyExpected, Go returns nil and ch is never used. If the
// message cannot be built, Go returns an already completed *Call with Err
// set, delivered on its own Done channel rather than on ch.
//
// A dot in method splits it into interface and member: "org.foo.Bar"
// calls member Bar on interface org.foo.
func (o *Object) Go(method string, flags Flags, ch chan *Call, args ...interface{}) *Call {
	iface := ""
	member := method
	if i := strings.LastIndex(method, "."); i != -1 {
		iface, member = method[:i], method[i+1:]
	}
	msg, err := NewMethodCallMessage(o.conn.order, o.dest, o.path, iface, member,
		flags&(FlagNoAutoStart|FlagNoReplyExpected|FlagAllowInteractiveAuthorization), args...)
	if err != nil {
		c := &Call{Destination: o.dest, Path: o.path, Method: method, Args: args, Err: err, Done: make(chan *Call, 1)}
		c.Done <- c
		return c
	}

	if msg.Flags&FlagNoReplyExpected != 0 {
		o.conn.send(msg)
		return nil
	}

	if ch == nil {
		ch = make(chan *Call, 1)
	} else if cap(ch) == 0 {
		panic("(*dbus.Object).Go: unbuffered channel")
	}
	call := &Call{
		Destination: o.dest,
		Path:        o.path,
		Method:      method,
		Args:        args,
		Done:        ch,
		start:       time.Now(),
	}
	msg.serial = o.conn.nextSerial()
	o.conn.callsLck.Lock()
	o.conn.calls[msg.serial] = call
	o.conn.callsLck.Unlock()
	o.conn.log.WithField("correlation_id", correlationID()).
		WithField("method", method).Debug("dbus: sending method call")
	o.conn.send(msg)
	return call
}

// Destination returns the bus name calls on o are addressed to.
func (o *Object) Destination() string { return o.dest }

// Path returns the object path calls on o are addressed to.
func (o *Object) Path() ObjectPath { return o.path }

// AddMatchSignal subscribes to signals on o matching iface/member, routing
// them to ch. The returned function cancels the subscription.
func (o *Object) AddMatchSignal(ctx context.Context, iface, member string, ch chan<- *Signal) (func(), error) {
	rule := MatchRule{Type: "signal", Sender: o.dest, Path: string(o.path), Interface: iface, Member: member}
	return o.conn.Subscribe(ctx, rule, ch)
}
