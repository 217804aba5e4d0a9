package dbus

// objectManagerState marks a node as an attached ObjectManager root. It
// carries no state of its own: managed objects are computed on demand by
// walking the registry, so additions/removals never need to touch it.
type objectManagerState struct{}

// findManagedProperties resolves iface's current property values for an
// InterfacesAdded announcement, if path falls under an ObjectManager.
func (s *objectServer) findManagedProperties(path ObjectPath, iface *Interface) (ObjectPath, map[string]Variant, bool) {
	mgrPath, ok := s.findManager(path)
	if !ok {
		return "", nil, false
	}
	return mgrPath, s.resolveProperties(iface), true
}

func (s *objectServer) resolveProperties(iface *Interface) map[string]Variant {
	props := make(map[string]Variant, len(iface.Properties))
	for name, p := range iface.Properties {
		if p.Get == nil {
			continue
		}
		v, err := p.Get()
		if err != nil {
			continue
		}
		props[name] = MakeVariantWithSignature(v, p.Signature)
	}
	return props
}

func (s *objectServer) emitInterfacesAdded(mgrPath, objPath ObjectPath, ifaceName string, props map[string]Variant) {
	s.conn.emitSignal(mgrPath, "org.freedesktop.DBus.ObjectManager", "InterfacesAdded",
		objPath, map[string]map[string]Variant{ifaceName: props})
}

func (s *objectServer) emitInterfacesRemoved(mgrPath, objPath ObjectPath, ifaceNames []string) {
	s.conn.emitSignal(mgrPath, "org.freedesktop.DBus.ObjectManager", "InterfacesRemoved",
		objPath, ifaceNames)
}

// handleGetManagedObjects answers org.freedesktop.DBus.ObjectManager's sole
// method: every descendant path's interfaces and properties (§4.J "Object
// manager").
func (s *objectServer) handleGetManagedObjects(msg *Message, mgrPath ObjectPath) {
	s.mu.RLock()
	out := make(map[ObjectPath]map[string]map[string]Variant)
	for p, n := range s.nodes {
		if !pathUnderOrEqual(p, mgrPath) {
			continue
		}
		ifaces := make(map[string]map[string]Variant)
		for name, iface := range n.interfaces {
			ifaces[name] = s.resolveProperties(iface)
		}
		if len(ifaces) > 0 {
			out[p] = ifaces
		}
	}
	s.mu.RUnlock()
	s.conn.replyReturn(msg, out)
}

// handleProperties answers org.freedesktop.DBus.Properties' Get/Set/GetAll
// by consulting the target path's registered interfaces (§4.J
// "Properties").
func (s *objectServer) handleProperties(msg *Message, path ObjectPath, member string) {
	args, err := DecodeMulti(bodyContext(msg.Order), msg.BodySignature(), msg.Body, msg.Fds)
	if err != nil {
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.InvalidArgs", err.Error())
		return
	}
	s.mu.RLock()
	n := s.nodes[path]
	s.mu.RUnlock()
	if n == nil {
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownObject", "unknown object "+string(path))
		return
	}

	switch member {
	case "Get":
		if len(args) != 2 {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.InvalidArgs", "Get needs interface and property name")
			return
		}
		ifaceName, _ := args[0].(string)
		propName, _ := args[1].(string)
		iface, ok := n.interfaces[ifaceName]
		if !ok {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownInterface", "unknown interface "+ifaceName)
			return
		}
		prop, ok := iface.Properties[propName]
		if !ok || prop.Get == nil {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownProperty", "unknown property "+propName)
			return
		}
		v, err := prop.Get()
		if err != nil {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.Failed", err.Error())
			return
		}
		s.conn.replyReturn(msg, MakeVariantWithSignature(v, prop.Signature))
	case "GetAll":
		if len(args) != 1 {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.InvalidArgs", "GetAll needs interface name")
			return
		}
		ifaceName, _ := args[0].(string)
		iface, ok := n.interfaces[ifaceName]
		if !ok {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownInterface", "unknown interface "+ifaceName)
			return
		}
		s.conn.replyReturn(msg, s.resolveProperties(iface))
	case "Set":
		if len(args) != 3 {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.InvalidArgs", "Set needs interface, property, value")
			return
		}
		ifaceName, _ := args[0].(string)
		propName, _ := args[1].(string)
		val, _ := args[2].(Variant)
		iface, ok := n.interfaces[ifaceName]
		if !ok {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownInterface", "unknown interface "+ifaceName)
			return
		}
		prop, ok := iface.Properties[propName]
		if !ok || prop.Set == nil {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.PropertyReadOnly", "property "+propName+" is not writable")
			return
		}
		if err := prop.Set(val); err != nil {
			s.conn.replyError(msg, "org.freedesktop.DBus.Error.InvalidArgs", err.Error())
			return
		}
		if msg.Flags&FlagNoReplyExpected == 0 {
			s.conn.replyReturn(msg)
		}
		s.announcePropertyChange(path, iface, propName, prop)
	default:
		s.conn.replyError(msg, "org.freedesktop.DBus.Error.UnknownMethod", "unknown Properties method "+member)
	}
}

func (s *objectServer) announcePropertyChange(path ObjectPath, iface *Interface, propName string, prop Property) {
	switch prop.Emits {
	case EmitsChangedFalse, EmitsChangedConst:
		return
	case EmitsChangedInvalidates:
		s.conn.emitSignal(path, "org.freedesktop.DBus.Properties", "PropertiesChanged",
			iface.Name, map[string]Variant{}, []string{propName})
	default:
		v, err := prop.Get()
		if err != nil {
			return
		}
		s.conn.emitSignal(path, "org.freedesktop.DBus.Properties", "PropertiesChanged",
			iface.Name, map[string]Variant{propName: MakeVariantWithSignature(v, prop.Signature)}, []string{})
	}
}
