// Package dbus implements a client for the D-Bus message bus protocol.
//
// It covers the wire-format codec (signature-driven binary serialization,
// classic D-Bus and GVariant framings), message framing and routing
// (header parsing, match-rule demultiplexing, reply correlation, unix fd
// passing), the connection state machine (SASL handshake, Hello bootstrap,
// concurrent call/reply/signal flows) and an object server for exporting
// interfaces, properties and the standard org.freedesktop.DBus.ObjectManager
// interface.
//
// Address discovery, the procedural-macro-generated proxy glue other
// implementations provide, introspection-XML code generation and logging
// configuration are intentionally left to callers; this package exposes the
// runtime APIs those layers build on.
package dbus
