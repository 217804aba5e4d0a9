package dbus

// RequestNameFlags are the flags accepted by RequestName.
type RequestNameFlags uint32

const (
	FlagAllowReplacement RequestNameFlags = 1 << iota
	FlagReplaceExisting
	FlagDoNotQueue
)

// RequestNameReply is RequestName's outcome.
type RequestNameReply uint32

const (
	NameReplyPrimaryOwner RequestNameReply = 1 + iota
	NameReplyInQueue
	NameReplyExists
	NameReplyAlreadyOwner
)

// RequestName calls org.freedesktop.DBus.RequestName.
func (c *Conn) RequestName(name string, flags RequestNameFlags) (RequestNameReply, error) {
	var r uint32
	err := c.busObj.Call("org.freedesktop.DBus.RequestName", 0, name, uint32(flags)).Store(&r)
	if err != nil {
		return 0, err
	}
	return RequestNameReply(r), nil
}

// ReleaseNameReply is ReleaseName's outcome.
type ReleaseNameReply uint32

const (
	ReleaseNameReplyReleased ReleaseNameReply = 1 + iota
	ReleaseNameReplyNonExistent
	ReleaseNameReplyNotOwner
)

// ReleaseName calls org.freedesktop.DBus.ReleaseName.
func (c *Conn) ReleaseName(name string) (ReleaseNameReply, error) {
	var r uint32
	err := c.busObj.Call("org.freedesktop.DBus.ReleaseName", 0, name).Store(&r)
	if err != nil {
		return 0, err
	}
	return ReleaseNameReply(r), nil
}

// GetNameOwner calls org.freedesktop.DBus.GetNameOwner.
func (c *Conn) GetNameOwner(name string) (string, error) {
	var owner string
	err := c.busObj.Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner)
	return owner, err
}

// NameHasOwner calls org.freedesktop.DBus.NameHasOwner.
func (c *Conn) NameHasOwner(name string) (bool, error) {
	var has bool
	err := c.busObj.Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&has)
	return has, err
}

// ListNames calls org.freedesktop.DBus.ListNames.
func (c *Conn) ListNames() ([]string, error) {
	var names []string
	err := c.busObj.Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// ListActivatableNames calls org.freedesktop.DBus.ListActivatableNames.
func (c *Conn) ListActivatableNames() ([]string, error) {
	var names []string
	err := c.busObj.Call("org.freedesktop.DBus.ListActivatableNames", 0).Store(&names)
	return names, err
}

// StartServiceReply is StartServiceByName's outcome.
type StartServiceReply uint32

const (
	StartReplySuccess StartServiceReply = 1 + iota
	StartReplyAlreadyRunning
)

// StartServiceByName calls org.freedesktop.DBus.StartServiceByName.
func (c *Conn) StartServiceByName(name string, flags uint32) (StartServiceReply, error) {
	var r uint32
	err := c.busObj.Call("org.freedesktop.DBus.StartServiceByName", 0, name, flags).Store(&r)
	if err != nil {
		return 0, err
	}
	return StartServiceReply(r), nil
}

// GetId calls org.freedesktop.DBus.GetId, returning the bus daemon's own
// unique identifier (distinct from (*Conn).PeerMachineId, which asks a
// peer's org.freedesktop.DBus.Peer interface for its machine ID).
func (c *Conn) GetId() (string, error) {
	var id string
	err := c.busObj.Call("org.freedesktop.DBus.GetId", 0).Store(&id)
	return id, err
}

// GetConnectionUnixUser calls org.freedesktop.DBus.GetConnectionUnixUser.
func (c *Conn) GetConnectionUnixUser(busName string) (uint32, error) {
	var uid uint32
	err := c.busObj.Call("org.freedesktop.DBus.GetConnectionUnixUser", 0, busName).Store(&uid)
	return uid, err
}

// GetConnectionUnixProcessID calls org.freedesktop.DBus.GetConnectionUnixProcessID.
func (c *Conn) GetConnectionUnixProcessID(busName string) (uint32, error) {
	var pid uint32
	err := c.busObj.Call("org.freedesktop.DBus.GetConnectionUnixProcessID", 0, busName).Store(&pid)
	return pid, err
}

// GetAdtAuditSessionData calls org.freedesktop.DBus.GetAdtAuditSessionData
// (Solaris audit session data; most peers will simply error).
func (c *Conn) GetAdtAuditSessionData(busName string) ([]byte, error) {
	var data []byte
	err := c.busObj.Call("org.freedesktop.DBus.GetAdtAuditSessionData", 0, busName).Store(&data)
	return data, err
}

// GetConnectionSELinuxSecurityContext calls
// org.freedesktop.DBus.GetConnectionSELinuxSecurityContext.
func (c *Conn) GetConnectionSELinuxSecurityContext(busName string) ([]byte, error) {
	var ctx []byte
	err := c.busObj.Call("org.freedesktop.DBus.GetConnectionSELinuxSecurityContext", 0, busName).Store(&ctx)
	return ctx, err
}

// GetConnectionCredentials calls org.freedesktop.DBus.GetConnectionCredentials,
// returning the raw a{sv} reply (fields vary by bus daemon version: at
// least UnixUserID and ProcessID are universally present).
func (c *Conn) GetConnectionCredentials(busName string) (map[string]Variant, error) {
	var creds map[string]Variant
	err := c.busObj.Call("org.freedesktop.DBus.GetConnectionCredentials", 0, busName).Store(&creds)
	return creds, err
}
