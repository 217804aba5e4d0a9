package dbus

import (
	"sync"

	"github.com/creachadair/mds/queue"
)

// Method is a single exported method's vtable entry (§4.J "Dispatch").
// Call receives the already-decoded argument list and returns the reply
// values, or a non-nil error. A RemoteError's Name becomes the outbound
// error reply's name; any other error maps to
// org.freedesktop.DBus.Error.Failed carrying the error's text (§7).
type Method struct {
	In, Out Signature
	Call    func(args []interface{}) ([]interface{}, error)
}

// PropertyAccess is an interface property's access mode, used for
// introspection.
type PropertyAccess int

const (
	PropertyReadWrite PropertyAccess = iota
	PropertyRead
	PropertyWrite
)

// EmitsChangedSignal controls whether a successful
// org.freedesktop.DBus.Properties.Set fires PropertiesChanged, and whether it carries the new value or
// only invalidates it (§4.J "Properties").
type EmitsChangedSignal int

const (
	EmitsChangedTrue EmitsChangedSignal = iota
	EmitsChangedInvalidates
	EmitsChangedFalse
	EmitsChangedConst
)

// Property is a single exported property's vtable entry.
type Property struct {
	Signature Signature
	Access    PropertyAccess
	Emits     EmitsChangedSignal
	Get       func() (interface{}, error)
	Set       func(Variant) error
}

// Interface is a single registered interface on a path: its methods,
// properties, and the signal names it may emit (for introspection only —
// emitting a signal never needs a registry lookup).
type Interface struct {
	Name       string
	Methods    map[string]Method
	Properties map[string]Property
	Signals    map[string]Signature
	// Concurrent, when true, allows replies to interleave arbitrarily;
	// when false (the default, "serial"), the object server replies to
	// calls on this interface in the order they were received (§9
	// "Concurrency of handlers").
	Concurrent bool
}

// node is one object-path's registration: zero or more interfaces.
type node struct {
	path       ObjectPath
	interfaces map[string]*Interface
	manager    *objectManagerState // non-nil if an ObjectManager is attached here
}

// objectServer is the path-prefix registry of Component J: registration,
// dispatch, the standard interfaces, and ObjectManager bookkeeping.
type objectServer struct {
	conn *Conn

	mu    sync.RWMutex
	nodes map[ObjectPath]*node

	// serial enforces "serial" (non-concurrent) interfaces' FIFO
	// reply ordering: each path+interface pair not marked Concurrent gets
	// its own queue so calls to other objects never wait behind it.
	serialMu sync.Mutex
	serial   map[string]*serialQueue
}

func newObjectServer(c *Conn) *objectServer {
	return &objectServer{conn: c, nodes: make(map[ObjectPath]*node)}
}

// Export attaches iface to path (§4.J "Registration"). If path is at or
// beneath a node carrying an ObjectManager, an InterfacesAdded signal is
// queued (deferred until Ready if the connection hasn't completed Hello
// yet — §4.I "Pre-Hello invariant").
func (c *Conn) Export(path ObjectPath, iface Interface) error {
	if !path.IsValid() {
		return NameError{"object path", string(path)}
	}
	if !validateInterfaceName(iface.Name) {
		return NameError{"interface", iface.Name}
	}
	s := c.objects
	s.mu.Lock()
	n, ok := s.nodes[path]
	if !ok {
		n = &node{path: path, interfaces: make(map[string]*Interface)}
		s.nodes[path] = n
	}
	ifaceCopy := iface
	n.interfaces[iface.Name] = &ifaceCopy
	s.mu.Unlock()

	if mgrPath, props, ok := s.findManagedProperties(path, &ifaceCopy); ok {
		s.emitInterfacesAdded(mgrPath, path, iface.Name, props)
	}
	return nil
}

// Unexport removes ifaceName from path, firing InterfacesRemoved if the
// path sits under an attached ObjectManager.
func (c *Conn) Unexport(path ObjectPath, ifaceName string) error {
	s := c.objects
	s.mu.Lock()
	n, ok := s.nodes[path]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(n.interfaces, ifaceName)
	empty := len(n.interfaces) == 0 && n.manager == nil
	if empty {
		delete(s.nodes, path)
	}
	s.mu.Unlock()

	if mgrPath, ok := s.findManager(path); ok {
		s.emitInterfacesRemoved(mgrPath, path, []string{ifaceName})
	}
	return nil
}

// ExportObjectManager attaches a standard ObjectManager at path (§4.J
// "Object manager").
func (c *Conn) ExportObjectManager(path ObjectPath) error {
	if !path.IsValid() {
		return NameError{"object path", string(path)}
	}
	s := c.objects
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[path]
	if !ok {
		n = &node{path: path, interfaces: make(map[string]*Interface)}
		s.nodes[path] = n
	}
	if n.manager == nil {
		n.manager = &objectManagerState{}
	}
	return nil
}

func (s *objectServer) findManager(path ObjectPath) (ObjectPath, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p, n := range s.nodes {
		if n.manager != nil && pathUnderOrEqual(path, p) {
			return p, true
		}
	}
	return "", false
}

func pathUnderOrEqual(path, prefix ObjectPath) bool {
	if path == prefix {
		return true
	}
	p, pre := string(path), string(prefix)
	if pre == "/" {
		return true
	}
	return len(p) > len(pre) && p[:len(pre)] == pre && p[len(pre)] == '/'
}

// handleMethodCall is the reader goroutine's entry point for every
// inbound method-call message (§4.J "Dispatch"). The routing decision —
// does this call land on a registered, non-concurrent ("serial")
// interface? — is made synchronously, right here on the reader, so that
// calls on the same serial interface are handed to runSerial in the
// order they arrived on the wire (§9 "Concurrency of handlers"); only
// the resolution is synchronous, never the method call itself, so the
// reader is never blocked on user code.
func (s *objectServer) handleMethodCall(msg *Message) {
	s.mu.RLock()
	n := s.nodes[msg.Path()]
	var iface *Interface
	if n != nil {
		iface = n.interfaces[msg.Interface()]
	}
	s.mu.RUnlock()

	if iface != nil && !iface.Concurrent {
		if method, ok := iface.Methods[msg.Member()]; ok {
			s.runSerial(msg.Path(), iface.Name, s.methodRunner(msg, method))
			return
		}
	}
	go s.dispatch(msg)
}

// dispatch handles everything handleMethodCall didn't already resolve to
// a serial queue: standard interfaces, unknown objects/interfaces/
// methods, and concurrent user methods — none of which need reader-order
// preservation, so dispatch always runs in its own goroutine.
func (s *objectServer) dispatch(msg *Message) {
	path := msg.Path()
	ifaceName := msg.Interface()
	member := msg.Member()

	s.mu.RLock()
	n := s.nodes[path]
	var iface *Interface
	if n != nil {
		iface = n.interfaces[ifaceName]
	}
	s.mu.RUnlock()

	if ifaceName == "org.freedesktop.DBus.Peer" {
		s.handlePeer(msg, member)
		return
	}
	if ifaceName == "org.freedesktop.DBus.Introspectable" && member == "Introspect" {
		s.handleIntrospect(msg, path)
		return
	}
	if ifaceName == "org.freedesktop.DBus.Properties" {
		s.handleProperties(msg, path, member)
		return
	}
	if ifaceName == "org.freedesktop.DBus.ObjectManager" && member == "GetManagedObjects" {
		s.handleGetManagedObjects(msg, path)
		return
	}
	if n == nil {
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownObject", "unknown object "+string(path))
		return
	}
	if iface == nil {
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownInterface", "unknown interface "+ifaceName)
		return
	}
	method, ok := iface.Methods[member]
	if !ok {
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownMethod", "unknown method "+member)
		return
	}
	s.callMethod(msg, iface, method)
}

func (s *objectServer) callMethod(msg *Message, iface *Interface, method Method) {
	run := s.methodRunner(msg, method)
	if iface.Concurrent {
		go run()
		return
	}
	s.runSerial(msg.Path(), iface.Name, run)
}

// methodRunner builds the decode/invoke/reply closure for one method
// call, deferred until a goroutine (concurrent path) or a serialQueue
// (serial path) actually runs it.
func (s *objectServer) methodRunner(msg *Message, method Method) func() {
	return func() {
		args, err := DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)
		if err != nil {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.InvalidArgs", err.Error())
			return
		}
		out, cerr := method.Call(args)
		if cerr != nil {
			if re, ok := cerr.(RemoteError); ok {
				s.conn.replyError(msg, re.Name, re.Error())
			} else {
				s.conn.replyError(msg, "org.freedesktop.DBus.Error.Failed", cerr.Error())
			}
			return
		}
		if msg.Flags&FlagNoReplyExpected != 0 {
			return
		}
		s.conn.replyReturn(msg, out...)
	}
}

// serialQueue runs funcs pushed onto it strictly in push order, one at a
// time, off the goroutine that pushes them: push is an O(1) enqueue so
// callers on the reader goroutine never block on a prior call's work.
type serialQueue struct {
	mu      sync.Mutex
	pending *queue.Queue[func()]
	running bool
}

func newSerialQueue() *serialQueue {
	return &serialQueue{pending: queue.New[func()]()}
}

func (q *serialQueue) push(run func()) {
	q.mu.Lock()
	q.pending.Add(run)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		run, ok := q.pending.Pop()
		if !ok {
			q.running = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
		run()
	}
}

// runSerial enforces FIFO reply ordering for a non-concurrent interface:
// run is enqueued onto the (path, interface) pair's own serialQueue so
// calls to other objects or interfaces never wait behind it.
func (s *objectServer) runSerial(path ObjectPath, ifaceName string, run func()) {
	key := string(path) + "\x00" + ifaceName
	s.serialMu.Lock()
	q, ok := s.serial[key]
	if !ok {
		if s.serial == nil {
			s.serial = make(map[string]*serialQueue)
		}
		q = newSerialQueue()
		s.serial[key] = q
	}
	s.serialMu.Unlock()
	q.push(run)
}

func (s *objectServer) handlePeer(msg *Message, member string) {
	switch member {
	case "Ping":
		if msg.Flags&FlagNoReplyExpected == 0 {
			s.conn.replyReturn(msg)
		}
	case "GetMachineId":
		id, err := s.conn.machineID()
		if err != nil {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.Failed", err.Error())
			return
		}
		s.conn.replyReturn(msg, id)
	default:
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownMethod", "unknown Peer method "+member)
	}
}
