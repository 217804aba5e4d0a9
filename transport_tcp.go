package dbus

import (
	"bufio"
	"io"
	"net"
)

// tcpTransport is the plain-tcp transport. It has no way to carry unix
// peer credentials, so it authenticates with ANONYMOUS and never
// supports fd passing (§6 "tcp" scheme).
type tcpTransport struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu writeSerializer
}

func dialTCP(kv map[string]string, opts dialOptions) (transport, error) {
	host := kv["host"]
	port := kv["port"]
	if host == "" || port == "" {
		return nil, AddressError{"tcp transport requires host= and port="}
	}
	family := "tcp"
	if kv["family"] == "ipv6" {
		family = "tcp6"
	} else if kv["family"] == "ipv4" {
		family = "tcp4"
	}
	conn, err := net.Dial(family, net.JoinHostPort(host, port))
	if err != nil {
		return nil, TransportError{err}
	}
	t := &tcpTransport{conn: conn, reader: bufio.NewReader(conn), writeMu: newWriteSerializer()}
	if err := authAnonymous(conn, t.reader); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *tcpTransport) supportsUnixFDs() bool { return false }

func (t *tcpTransport) Close() error { return t.conn.Close() }

func (t *tcpTransport) readMessage() (*Message, error) {
	prefix, err := t.reader.Peek(16)
	if err != nil {
		return nil, TransportError{err}
	}
	_, total, _, err := peekFrameLength(prefix)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, total)
	if _, err := io.ReadFull(t.reader, frame); err != nil {
		return nil, TransportError{err}
	}
	return unmarshalFrame(frame)
}

func (t *tcpTransport) sendMessage(m *Message) error {
	if len(m.Fds) > 0 {
		return NotSupportedError{"unix file descriptor passing over tcp"}
	}
	frame, err := marshalFrame(m)
	if err != nil {
		return err
	}
	t.writeMu.lock()
	defer t.writeMu.unlock()
	if _, err := t.conn.Write(frame); err != nil {
		return TransportError{err}
	}
	return nil
}
