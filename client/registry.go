// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/wire"
)

// Global is one entry of the compositor's advertisement: a numeric
// name bound to an interface at up to the given version. The name is
// the currency of the registry protocol; it is unrelated to object
// identifiers.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// RegistryEvent is an announcement or removal fanned out to registry
// observers.
type RegistryEvent struct {
	Global Global
	// Removed is true when the global is withdrawn. Objects bound
	// from it keep working until destroyed; removal only means no
	// new binds.
	Removed bool
}

type registryObserver struct {
	id int
	fn func(conn *Conn, event RegistryEvent)
}

// ObserveRegistry registers an observer for global announcements and
// removals. Unlike per-object handlers, any number of observers can
// watch the registry; each event fans out to all of them in
// registration order. The returned function removes the observer and
// is safe to call more than once, including from inside an observer.
//
// Announcements that arrived before the observer registered are not
// replayed; read Globals for the current picture.
func (c *Conn) ObserveRegistry(fn func(conn *Conn, event RegistryEvent)) (remove func()) {
	id := c.nextObserver
	c.nextObserver++
	c.observers = append(c.observers, registryObserver{id: id, fn: fn})
	return func() {
		c.observers = slices.DeleteFunc(c.observers, func(o registryObserver) bool {
			return o.id == id
		})
	}
}

// Globals returns a snapshot of the currently advertised globals,
// sorted by name. The snapshot reflects every registry event
// dispatched so far; it is empty before the first roundtrip.
func (c *Conn) Globals() []Global {
	globals := make([]Global, 0, len(c.globals))
	for _, global := range c.globals {
		globals = append(globals, global)
	}
	slices.SortFunc(globals, func(a, b Global) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return globals
}

// BindGlobal binds an advertised global, creating a client object
// speaking the given interface at the given version. The version
// must not exceed what the compositor advertised nor what the
// descriptor covers.
func (c *Conn) BindGlobal(global Global, iface *wire.Interface, version uint32) (Object, error) {
	if err := c.failed(); err != nil {
		return Object{}, err
	}
	if iface == nil {
		return Object{}, fmt.Errorf("client: bind global %d: nil interface", global.Name)
	}
	if global.Interface != iface.Name {
		return Object{}, fmt.Errorf("client: global %d is %s, not %s", global.Name, global.Interface, iface.Name)
	}
	if version == 0 {
		return Object{}, fmt.Errorf("client: bind %s: version 0", iface.Name)
	}
	if version > global.Version {
		return Object{}, fmt.Errorf("client: bind %s version %d: compositor advertises up to %d", iface.Name, version, global.Version)
	}
	if version > iface.Version {
		return Object{}, fmt.Errorf("client: bind %s version %d: descriptor covers up to %d", iface.Name, version, iface.Version)
	}
	if _, advertised := c.globals[global.Name]; !advertised {
		return Object{}, fmt.Errorf("client: global %d (%s) is not currently advertised", global.Name, global.Interface)
	}

	desc := protocol.Registry.RequestDesc(protocol.RegistryBind)
	created, err := c.objects.allocate(iface, version)
	if err != nil {
		return Object{}, err
	}
	args := []wire.Arg{
		wire.Uint(global.Name),
		wire.AnyNewID{Interface: iface.Name, Version: version, ID: created.id},
	}
	if err := c.enqueue(c.registry, protocol.RegistryBind, desc, args); err != nil {
		c.objects.unallocate(created)
		return Object{}, err
	}
	return created, nil
}

// dispatchRegistry maintains the globals snapshot and fans the event
// out to every observer. The observer list is snapshotted first, so
// observers that add or remove observers see the change take effect
// from the next event.
func (c *Conn) dispatchRegistry(opcode uint16, args []wire.Arg) {
	var event RegistryEvent
	switch opcode {
	case protocol.RegistryEventGlobal:
		event.Global = Global{
			Name:      uint32(args[0].(wire.Uint)),
			Interface: string(args[1].(wire.String)),
			Version:   uint32(args[2].(wire.Uint)),
		}
		c.globals[event.Global.Name] = event.Global
	case protocol.RegistryEventGlobalRemove:
		name := uint32(args[0].(wire.Uint))
		event.Removed = true
		if known, ok := c.globals[name]; ok {
			event.Global = known
		} else {
			event.Global = Global{Name: name}
		}
		delete(c.globals, name)
	}

	for _, observer := range slices.Clone(c.observers) {
		observer.fn(c, event)
	}
}
