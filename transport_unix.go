//go:build !windows

package dbus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/creachadair/mds/queue"
	"golang.org/x/sys/unix"
)

// unixTransport is the unix-domain-socket transport: SASL handshake over
// a null-byte-prefixed credentials exchange, then length-framed messages
// with SCM_RIGHTS-carried file descriptors (§4.H). Grounded directly on
// danderson/dbus's transport-unix.go.
type unixTransport struct {
	conn   *net.UnixConn
	reader *bufio.Reader
	oob    [512]byte
	fds    *queue.Queue[*os.File]
	fd     bool

	writeMu writeSerializer
}

func dialUnix(kv map[string]string, opts dialOptions) (transport, error) {
	path := kv["path"]
	if path == "" {
		if abstract, ok := kv["abstract"]; ok {
			path = "@" + abstract
		}
	}
	if path == "" {
		return nil, AddressError{"unix transport requires path= or abstract="}
	}
	addr := &net.UnixAddr{Net: "unix", Name: path}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, TransportError{err}
	}
	t := &unixTransport{
		conn:    conn,
		fds:     queue.New[*os.File](),
		writeMu: newWriteSerializer(),
	}
	t.reader = bufio.NewReader(funcReader(t.readToBuf))
	if err := t.handshake(opts); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *unixTransport) handshake(opts dialOptions) error {
	if _, err := t.conn.Write([]byte{0}); err != nil {
		return TransportError{err}
	}
	unixFD, err := authExternal(t.conn, t.reader, os.Getuid(), opts.negotiateUnixFD)
	if err != nil {
		return err
	}
	t.fd = unixFD
	return nil
}

func (t *unixTransport) supportsUnixFDs() bool { return t.fd }

func (t *unixTransport) Close() error {
	for {
		f, ok := t.fds.Pop()
		if !ok {
			break
		}
		f.Close()
	}
	return t.conn.Close()
}

func (t *unixTransport) readMessage() (*Message, error) {
	prefix := make([]byte, 16)
	if err := t.readFull(prefix); err != nil {
		return nil, err
	}
	_, total, _, err := peekFrameLength(prefix)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, total)
	copy(frame, prefix)
	if err := t.readFull(frame[16:]); err != nil {
		return nil, err
	}
	m, err := unmarshalFrame(frame)
	if err != nil {
		return nil, err
	}
	if n, ok := m.header(FieldUnixFDs); ok {
		if count, ok := n.Value().(uint32); ok && count > 0 {
			fds, err := t.claimFDs(int(count))
			if err != nil {
				return nil, err
			}
			m.Fds = fds
		}
	}
	return m, nil
}

// readFull reads len(buf) bytes from t.reader, unbounded by the bufio
// reader's internal buffer size (unlike Peek, which fails once a frame
// exceeds it).
func (t *unixTransport) readFull(buf []byte) error {
	if _, err := io.ReadFull(t.reader, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return TransportError{io.ErrUnexpectedEOF}
		}
		return TransportError{err}
	}
	return nil
}

func (t *unixTransport) claimFDs(n int) ([]*os.File, error) {
	out := make([]*os.File, 0, n)
	for i := 0; i < n; i++ {
		f, ok := t.fds.Pop()
		if !ok {
			for _, f := range out {
				f.Close()
			}
			return nil, TransportError{fmt.Errorf("message claims %d fds but only %d available", n, i)}
		}
		out = append(out, f)
	}
	return out, nil
}

func (t *unixTransport) sendMessage(m *Message) error {
	if len(m.Fds) > 0 && !t.fd {
		return NotSupportedError{"unix file descriptor passing"}
	}
	frame, err := marshalFrame(m)
	if err != nil {
		return err
	}
	t.writeMu.lock()
	defer t.writeMu.unlock()
	if len(m.Fds) == 0 {
		_, err := t.conn.Write(frame)
		if err != nil {
			return TransportError{err}
		}
		return nil
	}
	// The writer duplicates descriptors so the caller keeps ownership
	// semantics (§5 "Resource scoping").
	fds := make([]int, 0, len(m.Fds))
	for _, f := range m.Fds {
		dup, err := unix.Dup(int(f.Fd()))
		if err != nil {
			return TransportError{err}
		}
		fds = append(fds, dup)
	}
	scm := unix.UnixRights(fds...)
	n, oobn, err := t.conn.WriteMsgUnix(frame, scm, nil)
	if err != nil {
		return TransportError{err}
	}
	if n != len(frame) || oobn != len(scm) {
		return TransportError{io.ErrShortWrite}
	}
	return nil
}

func (t *unixTransport) readToBuf(bs []byte) (int, error) {
	n, oobn, flags, _, err := t.conn.ReadMsgUnix(bs, t.oob[:])
	if flags&unix.MSG_CTRUNC != 0 {
		return 0, errors.New("dbus: control message truncated")
	}
	if oobn > 0 {
		if oobErr := t.parseFDs(t.oob[:oobn]); oobErr != nil {
			return 0, oobErr
		}
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *unixTransport) parseFDs(oob []byte) error {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return err
	}
	var errs []error
	for _, scm := range scms {
		if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&scm)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, fd := range fds {
			f := os.NewFile(uintptr(fd), "")
			if f == nil {
				errs = append(errs, fmt.Errorf("invalid fd %d received", fd))
				continue
			}
			t.fds.Add(f)
		}
	}
	if len(errs) != 0 {
		return errors.Join(errs...)
	}
	return nil
}

type funcReader func([]byte) (int, error)

func (f funcReader) Read(bs []byte) (int, error) { return f(bs) }

func peerCredentials(conn *net.UnixConn) (*unix.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var cred *unix.Ucred
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, err
	}
	return cred, sockErr
}

// LocalCredentials returns the peer credentials the kernel attached to
// the underlying unix socket (SO_PEERCRED), used by (*Conn).PeerPID/
// PeerUID for diagnostics/logging rather than anything on the wire.
func (t *unixTransport) LocalCredentials() (uid, pid int, err error) {
	cred, err := peerCredentials(t.conn)
	if err != nil {
		return 0, 0, err
	}
	return int(cred.Uid), int(cred.Pid), nil
}
