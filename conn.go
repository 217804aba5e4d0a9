package dbus

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus-ng/dbus/dbus/machineid"
	"github.com/rs/xid"
)

// connState is the connection state machine of §4.I: Connecting ->
// Authenticated -> Helloing -> Ready -> Closing -> Closed. Authentication
// itself (SASL) happens inside getTransport/dialUnix before a Conn value
// exists, so Dial builds its Conn directly in Authenticated and Pipe builds
// its Conns directly in Ready; stateConnecting is never stored.
type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateHelloing
	stateReady
	stateClosing
	stateClosed
)

// Conn is a connection to a D-Bus message bus. Once Ready it is safe for
// concurrent use by any number of goroutines. Grounded directly on
// godbus/dbus's conn.go inWorker/outWorker/serials goroutine triad,
// adapted to the vtable-based object server and the ambient
// logging/metrics stack.
type Conn struct {
	t     transport
	order binary.ByteOrder

	state int32 // atomic connState

	names    []string
	namesLck sync.RWMutex

	serial uint32 // atomic, incremented per outbound message

	calls    map[uint32]*Call
	callsLck sync.Mutex

	subs    []*signalSub
	subsLck sync.RWMutex
	// broadcast receives every signal, independent of subs, matching the
	// teacher's single-channel Signal() method.
	broadcast   chan<- *Signal
	broadcastLk sync.Mutex

	matches *matchRegistry
	objects *objectServer
	busObj  *Object

	// pending holds messages built before the connection reaches Ready,
	// other than Hello itself (§4.I "Pre-Hello invariant"). They are
	// flushed to out the instant Hello's reply arrives.
	pending    []*Message
	pendingLck sync.Mutex

	out chan *Message

	closeCh   chan struct{}
	closeOnce sync.Once
	closeErr  error

	log     fieldLogger
	metrics *Metrics

	machineIDOnce sync.Once
	machineIDVal  string
	machineIDErr  error
}

// Signal is a received signal message, flattened for easy consumption.
type Signal struct {
	Sender string
	Path   ObjectPath
	Name   string // "interface.member"
	Body   []interface{}
}

type signalSub struct {
	rule MatchRule
	text string
	ch   chan<- *Signal
}

// Dial establishes a new authenticated connection to address and
// completes the Hello handshake, blocking until Ready or ctx is done.
func Dial(ctx context.Context, address string, options ...DialOption) (*Conn, error) {
	var o dialOptions
	for _, opt := range options {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}

	type result struct {
		c   *Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		t, err := getTransport(address, o)
		if err != nil {
			done <- result{nil, err}
			return
		}
		c := &Conn{
			t:       t,
			order:   binary.LittleEndian,
			state:   int32(stateAuthenticated),
			calls:   make(map[uint32]*Call),
			out:     make(chan *Message, 16),
			closeCh: make(chan struct{}),
			log:     o.logger,
			metrics: o.metrics,
		}
		c.matches = newMatchRegistry()
		c.objects = newObjectServer(c)
		c.busObj = c.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")

		go c.inWorker()
		go c.outWorker()

		if err := c.hello(ctx); err != nil {
			c.t.Close()
			done <- result{nil, err}
			return
		}
		done <- result{c, nil}
	}()

	select {
	case r := <-done:
		return r.c, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SessionBus connects to DBUS_SESSION_BUS_ADDRESS.
func SessionBus(ctx context.Context, options ...DialOption) (*Conn, error) {
	addr, ok := SessionBusAddress()
	if !ok || addr == "" {
		return nil, AddressError{"DBUS_SESSION_BUS_ADDRESS is not set"}
	}
	return Dial(ctx, addr, options...)
}

// SystemBus connects to DBUS_SYSTEM_BUS_ADDRESS or the platform default.
func SystemBus(ctx context.Context, options ...DialOption) (*Conn, error) {
	return Dial(ctx, SystemBusAddress(), options...)
}

func (c *Conn) getState() connState  { return connState(atomic.LoadInt32(&c.state)) }
func (c *Conn) setState(s connState) { atomic.StoreInt32(&c.state, int32(s)) }

// hello performs the bus Hello call that transitions Authenticated ->
// Helloing -> Ready, then releases any traffic queued while not yet
// Ready (§4.I).
func (c *Conn) hello(ctx context.Context) error {
	c.setState(stateHelloing)
	var name string
	call := c.busObj.Go("org.freedesktop.DBus.Hello", 0, make(chan *Call, 1))
	select {
	case <-call.Done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if call.Err != nil {
		return call.Err
	}
	if err := call.Store(&name); err != nil {
		return err
	}
	c.namesLck.Lock()
	c.names = []string{name}
	c.namesLck.Unlock()

	c.setState(stateReady)
	c.flushPending()
	return nil
}

func (c *Conn) flushPending() {
	c.pendingLck.Lock()
	queued := c.pending
	c.pending = nil
	c.pendingLck.Unlock()
	for _, m := range queued {
		c.out <- m
	}
}

// nextSerial returns the next outbound serial, skipping 0 (§4.F
// "Identity": 0 is never a valid serial).
func (c *Conn) nextSerial() uint32 {
	for {
		s := atomic.AddUint32(&c.serial, 1)
		if s != 0 {
			return s
		}
	}
}

// send queues msg for transmission. Until the connection is Ready, every
// message other than the bus Hello call itself is held in pending and
// released by hello() once Hello's reply arrives, per §4.I's pre-Hello
// invariant.
func (c *Conn) send(msg *Message) {
	isHello := msg.Type == TypeMethodCall && msg.Interface() == "org.freedesktop.DBus" && msg.Member() == "Hello"
	if !isHello && c.getState() < stateReady {
		c.pendingLck.Lock()
		if c.getState() < stateReady {
			c.pending = append(c.pending, msg)
			c.pendingLck.Unlock()
			return
		}
		c.pendingLck.Unlock()
	}
	c.out <- msg
}

// Object returns a proxy for the object at path on the peer named dest.
func (c *Conn) Object(dest string, path ObjectPath) *Object {
	return &Object{conn: c, dest: dest, path: path}
}

// BusObject returns the proxy for the bus daemon itself.
func (c *Conn) BusObject() *Object { return c.busObj }

// Names returns the unique name followed by every well-known name
// currently owned by this connection.
func (c *Conn) Names() []string {
	c.namesLck.RLock()
	defer c.namesLck.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// SupportsUnixFDs reports whether the underlying transport negotiated
// unix file descriptor passing.
func (c *Conn) SupportsUnixFDs() bool { return c.t.supportsUnixFDs() }

// Signal routes every received signal to ch, overwriting any previous
// destination set this way. Pass nil to stop. The caller must keep ch
// sufficiently drained: a signal is dropped, not blocked on, when ch is
// full (§4.G "delivery is best-effort").
func (c *Conn) Signal(ch chan<- *Signal) {
	c.broadcastLk.Lock()
	c.broadcast = ch
	c.broadcastLk.Unlock()
}

// Subscribe compiles rule, issues AddMatch on the bus if no other
// subscriber already holds an identical rule, and routes matching signals
// to ch. The returned function releases this subscription, issuing
// RemoveMatch once the last holder of the rule releases it (§4.G
// "reference counts").
func (c *Conn) Subscribe(ctx context.Context, rule MatchRule, ch chan<- *Signal) (func(), error) {
	text := rule.Display()
	err := c.matches.acquire(text, func() error {
		return c.busObj.CallWithContext(ctx, "org.freedesktop.DBus.AddMatch", 0, text)
	})
	if err != nil {
		return nil, err
	}
	sub := &signalSub{rule: rule, text: text, ch: ch}
	c.subsLck.Lock()
	c.subs = append(c.subs, sub)
	c.metrics.subscriptionsSet(len(c.subs))
	c.subsLck.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsLck.Lock()
			for i, s := range c.subs {
				if s == sub {
					c.subs = append(c.subs[:i], c.subs[i+1:]...)
					break
				}
			}
			c.metrics.subscriptionsSet(len(c.subs))
			c.subsLck.Unlock()
			if c.matches.release(text) {
				c.busObj.Go("org.freedesktop.DBus.RemoveMatch", FlagNoReplyExpected, nil, text)
			}
		})
	}, nil
}

// EmitSignal builds and sends a signal message from path/iface/member.
func (c *Conn) EmitSignal(path ObjectPath, iface, member string, body ...interface{}) error {
	msg, err := NewSignalMessage(c.order, path, iface, member, body...)
	if err != nil {
		return err
	}
	c.send(msg)
	return nil
}

func (c *Conn) emitSignal(path ObjectPath, iface, member string, body ...interface{}) {
	if err := c.EmitSignal(path, iface, member, body...); err != nil {
		c.log.WithError(err).Error("dbus: failed to build outgoing signal")
	}
}

// EmitPropertiesChanged emits org.freedesktop.DBus.Properties.PropertiesChanged
// for path/iface, used by package prop's change-notification helper.
func (c *Conn) EmitPropertiesChanged(path ObjectPath, iface string, changed map[string]Variant, invalidated []string) {
	if changed == nil {
		changed = map[string]Variant{}
	}
	if invalidated == nil {
		invalidated = []string{}
	}
	c.emitSignal(path, "org.freedesktop.DBus.Properties", "PropertiesChanged", iface, changed, invalidated)
}

func (c *Conn) replyReturn(call *Message, body ...interface{}) {
	msg, err := NewMethodReturnMessage(c.order, call, body...)
	if err != nil {
		c.log.WithError(err).Error("dbus: failed to build method return")
		return
	}
	c.send(msg)
}

func (c *Conn) replyError(call *Message, name, text string) {
	msg, err := NewErrorMessage(c.order, call, name, text)
	if err != nil {
		c.log.WithError(err).Error("dbus: failed to build error reply")
		return
	}
	c.send(msg)
}

// machineID returns this host's machine ID, the value this connection's
// own Peer.GetMachineId handler answers with, cached for the connection's
// lifetime.
func (c *Conn) machineID() (string, error) {
	c.machineIDOnce.Do(func() {
		id, err := machineid.ID()
		if err != nil {
			// A missing machine-id file/sysctl/registry key is a missing
			// local resource, not a wire failure: reported as Address
			// rather than Transport (see DESIGN.md's Open Question
			// resolution).
			err = AddressError{Reason: err.Error()}
		}
		c.machineIDVal, c.machineIDErr = id, err
	})
	return c.machineIDVal, c.machineIDErr
}

// PeerMachineId asks the remote peer at dest for its machine ID via
// org.freedesktop.DBus.Peer.GetMachineId, distinct from (*Conn).machineID
// which answers for this host's own Peer interface.
func (c *Conn) PeerMachineId(dest string) (string, error) {
	var id string
	err := c.Object(dest, "/").Call("org.freedesktop.DBus.Peer.GetMachineId", 0).Store(&id)
	return id, err
}

// localCredentialer is implemented by transports that can report the
// kernel-verified identity of the peer on the other end of the socket
// (unixTransport, via SO_PEERCRED).
type localCredentialer interface {
	LocalCredentials() (uid, pid int, err error)
}

// PeerUID returns the peer's kernel-verified uid, for diagnostics and
// logging rather than anything on the wire. Returns NotSupportedError if
// the underlying transport has no notion of peer credentials (e.g. tcp).
func (c *Conn) PeerUID() (int, error) {
	uid, _, err := c.peerCredentials()
	return uid, err
}

// PeerPID returns the peer's kernel-verified pid. See PeerUID.
func (c *Conn) PeerPID() (int, error) {
	_, pid, err := c.peerCredentials()
	return pid, err
}

func (c *Conn) peerCredentials() (uid, pid int, err error) {
	lc, ok := c.t.(localCredentialer)
	if !ok {
		return 0, 0, NotSupportedError{"peer credentials on this transport"}
	}
	return lc.LocalCredentials()
}

// Close begins an orderly shutdown (§4.I "Closing"): the writer goroutine
// drains what's already queued, both goroutines then exit, and every call
// still awaiting a reply is failed with ClosedError.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.setState(stateClosing)
		close(c.closeCh)
		close(c.out)
		c.closeErr = c.t.Close()
		c.setState(stateClosed)

		c.callsLck.Lock()
		for serial, call := range c.calls {
			call.Err = ClosedError{}
			call.Done <- call
			delete(c.calls, serial)
		}
		c.callsLck.Unlock()
	})
	return c.closeErr
}

func (c *Conn) outWorker() {
	for msg := range c.out {
		err := c.sendMessage(msg)
		if err != nil {
			c.callsLck.Lock()
			if call, ok := c.calls[msg.Serial()]; ok {
				call.Err = err
				call.Done <- call
				delete(c.calls, msg.Serial())
			}
			c.callsLck.Unlock()
		}
		c.metrics.pendingCallsSet(c.pendingCallCount())
	}
}

func (c *Conn) pendingCallCount() int {
	c.callsLck.Lock()
	defer c.callsLck.Unlock()
	return len(c.calls)
}

// sendMessage assigns the serial (if not already assigned by send's
// caller) and writes the frame.
func (c *Conn) sendMessage(msg *Message) error {
	if msg.serial == 0 {
		msg.serial = c.nextSerial()
	}
	c.metrics.sent(msg.Type)
	return c.t.sendMessage(msg)
}

func (c *Conn) inWorker() {
	for {
		msg, err := c.t.readMessage()
		if err != nil {
			c.failAllPending(err)
			return
		}
		c.metrics.received(msg.Type)
		c.dispatchInbound(msg)
	}
}

func (c *Conn) failAllPending(err error) {
	select {
	case <-c.closeCh:
		return // Close() already owns teardown and will report ClosedError.
	default:
	}
	c.log.WithError(err).Error("dbus: connection read failed, closing")
	c.Close()
}

func (c *Conn) dispatchInbound(msg *Message) {
	switch msg.Type {
	case TypeMethodReply, TypeError:
		serial, ok := msg.ReplySerial()
		if !ok {
			logDroppedMessage(c.log, NameError{"message", "reply without ReplySerial"})
			return
		}
		c.callsLck.Lock()
		call, ok := c.calls[serial]
		if ok {
			delete(c.calls, serial)
		}
		c.callsLck.Unlock()
		if !ok {
			return
		}
		if msg.Type == TypeError {
			body, _ := DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)
			call.Err = RemoteError{Name: msg.ErrorName(), Body: body}
		} else {
			call.Body, call.Err = DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)
		}
		if !call.start.IsZero() {
			c.metrics.observeCallLatencySeconds(time.Since(call.start).Seconds())
		}
		call.Done <- call
	case TypeSignal:
		c.dispatchSignal(msg)
	case TypeMethodCall:
		c.objects.handleMethodCall(msg)
	}
}

func (c *Conn) dispatchSignal(msg *Message) {
	iface, member := msg.Interface(), msg.Member()
	if iface == "org.freedesktop.DBus" && member == "NameLost" && msg.Sender() == "org.freedesktop.DBus" {
		body, _ := DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)
		if len(body) > 0 {
			if name, ok := body[0].(string); ok {
				c.forgetName(name)
			}
		}
	}
	if iface == "org.freedesktop.DBus" && member == "NameAcquired" && msg.Sender() == "org.freedesktop.DBus" {
		body, _ := DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)
		if len(body) > 0 {
			if name, ok := body[0].(string); ok {
				c.learnName(name)
			}
		}
	}

	sig := &Signal{Sender: msg.Sender(), Path: msg.Path(), Name: iface + "." + member}
	sig.Body, _ = DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)

	c.broadcastLk.Lock()
	bc := c.broadcast
	c.broadcastLk.Unlock()
	if bc != nil {
		select {
		case bc <- sig:
		default:
		}
	}

	c.subsLck.RLock()
	for _, s := range c.subs {
		if s.rule.Evaluate(msg) {
			select {
			case s.ch <- sig:
			default:
			}
		}
	}
	c.subsLck.RUnlock()
}

func (c *Conn) learnName(name string) {
	c.namesLck.Lock()
	defer c.namesLck.Unlock()
	for _, n := range c.names {
		if n == name {
			return
		}
	}
	c.names = append(c.names, name)
}

func (c *Conn) forgetName(name string) {
	c.namesLck.Lock()
	defer c.namesLck.Unlock()
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			return
		}
	}
}

// correlationID returns a short, sortable id suitable for log fields
// tying a call's request and reply log lines together.
func correlationID() string { return xid.New().String() }
