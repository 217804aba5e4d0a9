package dbus

import (
	"context"
	"sync"
)

// PropertyCache mirrors one interface's properties on a remote object,
// kept current by subscribing to PropertiesChanged (Component K, "cache
// properties with invalidation").
type PropertyCache struct {
	obj   *Object
	iface string

	mu     sync.RWMutex
	values map[string]Variant

	cancel    func()
	stop      chan struct{}
	closeOnce sync.Once
}

// NewPropertyCache fetches iface's current properties from o via GetAll
// and subscribes to PropertiesChanged to keep them current. Call Close
// when done to release the subscription.
func NewPropertyCache(ctx context.Context, o *Object, iface string) (*PropertyCache, error) {
	propsObj := o.conn.Object(o.dest, o.path)
	var all map[string]Variant
	if err := propsObj.Call("org.freedesktop.DBus.Properties.GetAll", 0, iface).Store(&all); err != nil {
		return nil, err
	}
	pc := &PropertyCache{obj: o, iface: iface, values: all, stop: make(chan struct{})}

	ch := make(chan *Signal, 16)
	rule := MatchRule{
		Type:      "signal",
		Sender:    o.dest,
		Path:      string(o.path),
		Interface: "org.freedesktop.DBus.Properties",
		Member:    "PropertiesChanged",
	}
	cancel, err := o.conn.Subscribe(ctx, rule, ch)
	if err != nil {
		return nil, err
	}
	pc.cancel = cancel

	go pc.watch(ch)
	return pc, nil
}

func (pc *PropertyCache) watch(ch chan *Signal) {
	for {
		select {
		case <-pc.stop:
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			if len(sig.Body) != 3 {
				continue
			}
			ifaceName, _ := sig.Body[0].(string)
			if ifaceName != pc.iface {
				continue
			}
			var changed map[string]Variant
			var invalidated []string
			if err := storeOne(sig.Body[1], &changed); err != nil {
				continue
			}
			_ = storeOne(sig.Body[2], &invalidated)
			pc.mu.Lock()
			for k, v := range changed {
				pc.values[k] = v
			}
			for _, k := range invalidated {
				delete(pc.values, k)
			}
			pc.mu.Unlock()
		}
	}
}

// Get returns name's last known value, refetching via Get if it was
// invalidated and is not currently cached.
func (pc *PropertyCache) Get(name string) (interface{}, error) {
	pc.mu.RLock()
	v, ok := pc.values[name]
	pc.mu.RUnlock()
	if ok {
		return v.Value(), nil
	}
	var fresh Variant
	err := pc.obj.conn.Object(pc.obj.dest, pc.obj.path).
		Call("org.freedesktop.DBus.Properties.Get", 0, pc.iface, name).Store(&fresh)
	if err != nil {
		return nil, err
	}
	pc.mu.Lock()
	pc.values[name] = fresh
	pc.mu.Unlock()
	return fresh.Value(), nil
}

// Close stops watching for property changes.
func (pc *PropertyCache) Close() {
	pc.closeOnce.Do(func() {
		close(pc.stop)
		if pc.cancel != nil {
			pc.cancel()
		}
	})
}
