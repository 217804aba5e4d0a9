package dbus

import (
	"io"
)

// transport is a raw, already-authenticated D-Bus byte stream: frames in,
// frames out, with unix fd passing where the platform supports it (§4.H).
// Concrete implementations: unixTransport (transport_unix.go),
// tcpTransport (transport_tcp.go) and pipeTransport (pipe.go).
type transport interface {
	io.Closer

	// readMessage reads and parses one complete frame, resolving any
	// attached file descriptors via the sideband queue.
	readMessage() (*Message, error)
	// sendMessage writes one complete frame, duplicating any attached
	// file descriptors so the caller retains ownership (§5 "Resource
	// scoping").
	sendMessage(*Message) error

	// supportsUnixFDs reports whether NEGOTIATE_UNIX_FD succeeded.
	supportsUnixFDs() bool
}

// writeSerializer gives outbound writes a single mutex-protected queue,
// matching §4.H "Backpressure".
type writeSerializer struct {
	ch chan struct{}
}

func newWriteSerializer() writeSerializer {
	s := writeSerializer{ch: make(chan struct{}, 1)}
	s.ch <- struct{}{}
	return s
}

func (s writeSerializer) lock()   { <-s.ch }
func (s writeSerializer) unlock() { s.ch <- struct{}{} }

// dialOptions configures Dial (§2 ambient config: functional options
// rather than a config file, matching the teacher).
type dialOptions struct {
	negotiateUnixFD bool
	resolver        AddressResolver
	logger          fieldLogger
	metrics         *Metrics
}

// DialOption configures a Dial call.
type DialOption func(*dialOptions)

// WithNegotiateUnixFD enables/disables the NEGOTIATE_UNIX_FD handshake
// step (§4.H "Handshake").
func WithNegotiateUnixFD(enabled bool) DialOption {
	return func(o *dialOptions) { o.negotiateUnixFD = enabled }
}

// WithAddressResolver installs a resolver for non-socket address schemes
// (ibus, autolaunch, launchd, ...) that the core itself does not resolve.
func WithAddressResolver(r AddressResolver) DialOption {
	return func(o *dialOptions) { o.resolver = r }
}

// WithLogger installs a structured logger for the observability hook
// (§7 "logged through the observability hook").
func WithLogger(l fieldLogger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithMetrics installs a Prometheus collector on the connection.
func WithMetrics(m *Metrics) DialOption {
	return func(o *dialOptions) { o.metrics = m }
}

func getTransport(address string, opts dialOptions) (transport, error) {
	specs, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, spec := range specs {
		switch spec.scheme {
		case "unix":
			t, err := dialUnix(spec.kv, opts)
			if err == nil {
				return t, nil
			}
			lastErr = err
		case "tcp":
			t, err := dialTCP(spec.kv, opts)
			if err == nil {
				return t, nil
			}
			lastErr = err
		default:
			if opts.resolver == nil {
				lastErr = AddressError{"unsupported transport scheme " + spec.scheme + " (no AddressResolver configured)"}
				continue
			}
			resolved, err := opts.resolver(spec.scheme, spec.kv)
			if err != nil {
				lastErr = err
				continue
			}
			return getTransport(resolved, opts)
		}
	}
	if lastErr == nil {
		lastErr = AddressError{"no usable transport in address"}
	}
	return nil, lastErr
}
