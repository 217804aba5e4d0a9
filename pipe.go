package dbus

import "encoding/binary"

// pipeTransport is an in-memory transport connecting two *Conn directly,
// passing already-built *Message values instead of framed bytes. It
// stands in for a real unix socket pair when exercising the connection
// core, object server and call path without a bus daemon.
type pipeTransport struct {
	out    chan *Message
	in     <-chan *Message
	closed chan struct{}
}

func newPipePair() (a, b *pipeTransport) {
	ab := make(chan *Message, 64)
	ba := make(chan *Message, 64)
	a = &pipeTransport{out: ab, in: ba, closed: make(chan struct{})}
	b = &pipeTransport{out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (p *pipeTransport) readMessage() (*Message, error) {
	select {
	case m, ok := <-p.in:
		if !ok {
			return nil, ClosedError{}
		}
		return m, nil
	case <-p.closed:
		return nil, ClosedError{}
	}
}

func (p *pipeTransport) sendMessage(m *Message) error {
	select {
	case p.out <- m:
		return nil
	case <-p.closed:
		return ClosedError{}
	}
}

func (p *pipeTransport) supportsUnixFDs() bool { return false }

func (p *pipeTransport) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func newConnOverTransport(t transport) *Conn {
	c := &Conn{
		t:       t,
		order:   binary.LittleEndian,
		state:   int32(stateReady),
		calls:   make(map[uint32]*Call),
		out:     make(chan *Message, 16),
		closeCh: make(chan struct{}),
		log:     defaultLogger(),
	}
	c.matches = newMatchRegistry()
	c.objects = newObjectServer(c)
	c.busObj = c.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
	go c.inWorker()
	go c.outWorker()
	return c
}

// Pipe returns two connected, ready Conns wired directly to each other
// without a real bus daemon or SASL handshake, the way net.Pipe returns
// two connected net.Conns. It is meant for tests of code built on top of
// a *Conn that would otherwise need a live bus to exercise.
func Pipe() (a, b *Conn) {
	pa, pb := newPipePair()
	return newConnOverTransport(pa), newConnOverTransport(pb)
}
