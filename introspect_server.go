package dbus

import "github.com/godbus-ng/dbus/dbus/introspect"

// handleIntrospect answers org.freedesktop.DBus.Introspectable.Introspect
// for path, listing every registered interface plus the standard ones
// every object answers (§4.J "Introspection").
func (s *objectServer) handleIntrospect(msg *Message, path ObjectPath) {
	n := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			introspect.PropertiesData,
			introspect.PeerData,
		},
	}

	s.mu.RLock()
	node := s.nodes[path]
	if node != nil {
		if node.manager != nil {
			n.Interfaces = append(n.Interfaces, introspect.ObjectManagerData)
		}
		for _, iface := range node.interfaces {
			n.Interfaces = append(n.Interfaces, ifaceToIntrospect(iface))
		}
	}
	prefix := string(path)
	if prefix != "/" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	for p := range s.nodes {
		ps := string(p)
		if len(ps) <= len(prefix) || ps[:len(prefix)] != prefix {
			continue
		}
		rest := ps[len(prefix):]
		for i, c := range rest {
			if c == '/' {
				rest = rest[:i]
				break
			}
		}
		if rest == "" || seen[rest] {
			continue
		}
		seen[rest] = true
		n.Children = append(n.Children, introspect.Node{Name: rest})
	}
	s.mu.RUnlock()

	doc, err := introspect.Marshal(n)
	if err != nil {
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.Failed", err.Error())
		return
	}
	s.conn.replyReturn(msg, doc)
}

func ifaceToIntrospect(iface *Interface) introspect.Interface {
	out := introspect.Interface{Name: iface.Name}
	for name, m := range iface.Methods {
		var args []introspect.Arg
		for _, t := range m.In.Values() {
			args = append(args, introspect.Arg{Type: t, Direction: "in"})
		}
		for _, t := range m.Out.Values() {
			args = append(args, introspect.Arg{Type: t, Direction: "out"})
		}
		out.Methods = append(out.Methods, introspect.Method{Name: name, Args: args})
	}
	for name, sig := range iface.Signals {
		var args []introspect.Arg
		for _, t := range sig.Values() {
			args = append(args, introspect.Arg{Type: t})
		}
		out.Signals = append(out.Signals, introspect.Signal{Name: name, Args: args})
	}
	for name, p := range iface.Properties {
		access := "readwrite"
		switch p.Access {
		case PropertyRead:
			access = "read"
		case PropertyWrite:
			access = "write"
		}
		out.Properties = append(out.Properties, introspect.Property{
			Name: name, Type: p.Signature.String(), Access: access,
		})
	}
	return out
}
