// Package introspect provides the XML document types for
// org.freedesktop.DBus.Introspectable, and a client helper to fetch and
// parse one.
package introspect

import (
	"encoding/xml"
	"errors"
)

var (
	errWrongReturnCount = errors.New("introspect: Introspect call returned wrong number of values")
	errNotAString       = errors.New("introspect: Introspect call did not return a string")
)

// IntrospectInterface is the interface name every object answers for
// introspection requests.
const IntrospectInterface = "org.freedesktop.DBus.Introspectable"

// IntrospectMethod is the sole method on IntrospectInterface.
const IntrospectMethod = IntrospectInterface + ".Introspect"

// Node is the root of an introspection document: the object itself, plus
// any child object paths known at this level.
type Node struct {
	XMLName    xml.Name    `xml:"node"`
	Name       string      `xml:"name,attr,omitempty"`
	Interfaces []Interface `xml:"interface"`
	Children   []Node      `xml:"node,omitempty"`
}

// Interface describes one interface's methods, signals and properties.
type Interface struct {
	Name       string     `xml:"name,attr"`
	Methods    []Method   `xml:"method"`
	Signals    []Signal   `xml:"signal"`
	Properties []Property `xml:"property"`
}

// Method describes one method's arguments.
type Method struct {
	Name string `xml:"name,attr"`
	Args []Arg  `xml:"arg"`
}

// Signal describes one signal's arguments.
type Signal struct {
	Name string `xml:"name,attr"`
	Args []Arg  `xml:"arg"`
}

// Arg is a single method or signal argument.
type Arg struct {
	Name      string `xml:"name,attr,omitempty"`
	Type      string `xml:"type,attr"`
	Direction string `xml:"direction,attr,omitempty"`
}

// Property describes one exported property.
type Property struct {
	Name   string `xml:"name,attr"`
	Type   string `xml:"type,attr"`
	Access string `xml:"access,attr"`
}

// IntrospectData is the static introspection fragment every D-Bus object
// answers for org.freedesktop.DBus.Introspectable itself.
var IntrospectData = Interface{
	Name: IntrospectInterface,
	Methods: []Method{
		{Name: "Introspect", Args: []Arg{{Name: "out", Type: "s", Direction: "out"}}},
	},
}

// PropertiesData is the static introspection fragment for
// org.freedesktop.DBus.Properties.
var PropertiesData = Interface{
	Name: "org.freedesktop.DBus.Properties",
	Methods: []Method{
		{Name: "Get", Args: []Arg{
			{Name: "interface_name", Type: "s", Direction: "in"},
			{Name: "property_name", Type: "s", Direction: "in"},
			{Name: "value", Type: "v", Direction: "out"},
		}},
		{Name: "GetAll", Args: []Arg{
			{Name: "interface_name", Type: "s", Direction: "in"},
			{Name: "properties", Type: "a{sv}", Direction: "out"},
		}},
		{Name: "Set", Args: []Arg{
			{Name: "interface_name", Type: "s", Direction: "in"},
			{Name: "property_name", Type: "s", Direction: "in"},
			{Name: "value", Type: "v", Direction: "in"},
		}},
	},
	Signals: []Signal{
		{Name: "PropertiesChanged", Args: []Arg{
			{Name: "interface_name", Type: "s"},
			{Name: "changed_properties", Type: "a{sv}"},
			{Name: "invalidated_properties", Type: "as"},
		}},
	},
}

// ObjectManagerData is the static introspection fragment for
// org.freedesktop.DBus.ObjectManager.
var ObjectManagerData = Interface{
	Name: "org.freedesktop.DBus.ObjectManager",
	Methods: []Method{
		{Name: "GetManagedObjects", Args: []Arg{
			{Name: "objects", Type: "a{oa{sa{sv}}}", Direction: "out"},
		}},
	},
	Signals: []Signal{
		{Name: "InterfacesAdded", Args: []Arg{
			{Name: "object", Type: "o"},
			{Name: "interfaces", Type: "a{sa{sv}}"},
		}},
		{Name: "InterfacesRemoved", Args: []Arg{
			{Name: "object", Type: "o"},
			{Name: "interfaces", Type: "as"},
		}},
	},
}

// PeerData is the static introspection fragment for
// org.freedesktop.DBus.Peer.
var PeerData = Interface{
	Name: "org.freedesktop.DBus.Peer",
	Methods: []Method{
		{Name: "Ping"},
		{Name: "GetMachineId", Args: []Arg{{Name: "machine_uuid", Type: "s", Direction: "out"}}},
	},
}

// Marshal renders n as an introspection XML document, including the
// standard header required by the D-Bus specification.
func Marshal(n *Node) (string, error) {
	b, err := xml.MarshalIndent(n, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(b), nil
}

// Unmarshal parses xmlDoc into a Node.
func Unmarshal(xmlDoc string) (*Node, error) {
	var n Node
	if err := xml.Unmarshal([]byte(xmlDoc), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Caller is the subset of *dbus.Object the client helper needs, kept
// abstract so this package never imports the root one.
type Caller interface {
	Call(method string, args ...interface{}) ([]interface{}, error)
}

// Call introspects o by invoking its Introspect method and parsing the
// resulting XML document.
func Call(o Caller) (*Node, error) {
	ret, err := o.Call(IntrospectMethod)
	if err != nil {
		return nil, err
	}
	if len(ret) != 1 {
		return nil, errWrongReturnCount
	}
	s, ok := ret[0].(string)
	if !ok {
		return nil, errNotAString
	}
	return Unmarshal(s)
}
