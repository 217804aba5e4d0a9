// Package prop provides an in-process store for exported D-Bus
// properties, wired onto org.freedesktop.DBus.Properties through the
// root package's Interface/Property vtable.
package prop

import (
	"sync"

	"github.com/godbus-ng/dbus"
)

// EmitType controls whether changing a property fires PropertiesChanged,
// and whether the signal carries the new value or only invalidates it.
type EmitType int

const (
	EmitFalse EmitType = iota
	EmitTrue
	EmitInvalidates
	EmitConst
)

// Change describes one property's new value, passed to a Prop's Callback
// after a successful Set.
type Change struct {
	Props *Properties
	Iface string
	Name  string
	Value interface{}
}

// Prop is one property's definition: its current value, whether peers may
// Set it, how changes are announced, and an optional callback run after
// every successful Set (e.g. to push the change to hardware).
type Prop struct {
	Value    interface{}
	Writable bool
	Emit     EmitType
	Callback func(*Change) error
}

// Properties is an in-process store for one object path's properties,
// grouped by interface. It implements the storage and change-notification
// half of org.freedesktop.DBus.Properties; the wire-level Get/Set/GetAll
// dispatch itself lives in the root package's object server, which
// consults the dbus.Interface this type registers.
type Properties struct {
	conn *dbus.Conn
	path dbus.ObjectPath

	mu    sync.RWMutex
	props map[string]map[string]*Prop
}

// New registers props at path on conn, one dbus.Interface per top-level
// key of props, and returns the live store.
func New(conn *dbus.Conn, path dbus.ObjectPath, props map[string]map[string]*Prop) (*Properties, error) {
	p := &Properties{conn: conn, path: path, props: props}
	for ifaceName, ifaceProps := range props {
		iface := dbus.Interface{Name: ifaceName, Properties: make(map[string]dbus.Property, len(ifaceProps))}
		for name, pr := range ifaceProps {
			pr := pr
			name := name
			sig, err := dbus.SignatureOf(pr.Value)
			if err != nil {
				return nil, err
			}
			access := dbus.PropertyRead
			if pr.Writable {
				access = dbus.PropertyReadWrite
			}
			iface.Properties[name] = dbus.Property{
				Signature: sig,
				Access:    access,
				Emits:     emitsChangedOf(pr.Emit),
				Get: func() (interface{}, error) {
					p.mu.RLock()
					defer p.mu.RUnlock()
					return pr.Value, nil
				},
				Set: func(v dbus.Variant) error {
					if !pr.Writable {
						return dbus.NotSupportedError{Feature: "setting " + ifaceName + "." + name}
					}
					p.mu.Lock()
					pr.Value = v.Value()
					p.mu.Unlock()
					if pr.Callback != nil {
						if derr := pr.Callback(&Change{Props: p, Iface: ifaceName, Name: name, Value: pr.Value}); derr != nil {
							return derr
						}
					}
					return nil
				},
			}
		}
		if err := conn.Export(path, iface); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func emitsChangedOf(e EmitType) dbus.EmitsChangedSignal {
	switch e {
	case EmitTrue:
		return dbus.EmitsChangedTrue
	case EmitInvalidates:
		return dbus.EmitsChangedInvalidates
	case EmitConst:
		return dbus.EmitsChangedConst
	default:
		return dbus.EmitsChangedFalse
	}
}

// Get returns iface's property name's current value.
func (p *Properties) Get(iface, name string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.props[iface]
	if !ok {
		return nil, false
	}
	pr, ok := m[name]
	if !ok {
		return nil, false
	}
	return pr.Value, true
}

// SetMust sets iface's property name to v from Go code (not a bus call),
// announcing PropertiesChanged as the property's EmitType dictates.
func (p *Properties) SetMust(iface, name string, v interface{}) {
	p.mu.Lock()
	pr, ok := p.props[iface][name]
	if ok {
		pr.Value = v
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	switch pr.Emit {
	case EmitFalse, EmitConst:
		return
	case EmitInvalidates:
		p.conn.EmitPropertiesChanged(p.path, iface, nil, []string{name})
	default:
		sig, err := dbus.SignatureOf(v)
		if err != nil {
			return
		}
		p.conn.EmitPropertiesChanged(p.path, iface, map[string]dbus.Variant{
			name: dbus.MakeVariantWithSignature(v, sig),
		}, nil)
	}
}
