// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"strconv"

	"github.com/bureau-foundation/wayline/wire"
)

// Object is a handle to a protocol object on one connection. Handles
// are small values, freely copyable; the connection's table is the
// source of truth for liveness. A handle taken before the object was
// destroyed keeps working as a name in diagnostics but fails cleanly
// in sends, even if the identifier has since been recycled for a new
// object.
//
// The zero Object is no object.
type Object struct {
	id         wire.ObjectID
	generation uint64
	iface      *wire.Interface
	version    uint32
}

// ID returns the object's wire identifier.
func (o Object) ID() wire.ObjectID { return o.id }

// Interface returns the object's interface descriptor.
func (o Object) Interface() *wire.Interface { return o.iface }

// Version returns the interface version the object was created with.
func (o Object) Version() uint32 { return o.version }

// Valid reports whether the handle refers to an object at all. It
// says nothing about liveness.
func (o Object) Valid() bool { return o.id != 0 }

// String returns the debug form, for example "wl_registry@2".
func (o Object) String() string {
	if o.id == 0 {
		return "<no object>"
	}
	return o.iface.Name + "@" + strconv.FormatUint(uint64(o.id), 10)
}

// handleState is the table's record of one identifier. A state is
// live between creation and destruction; after destruction it lingers
// (dead) until the display confirms deletion, so that messages
// naming the identifier in the meantime are recognized as violations
// rather than misread as a different object.
type handleState struct {
	iface      *wire.Interface
	version    uint32
	generation uint64
	alive      bool
}

// objectTable maps identifiers to object state. Client-allocated
// identifiers are dense and index a slot arena directly; the sparse
// server-allocated range lives in a map. Every registration gets a
// fresh generation number, which is what lets a stale handle to a
// recycled identifier be told apart from the identifier's current
// occupant.
type objectTable struct {
	// slots[n-1] holds client identifier n.
	slots []handleState
	// free holds recycled client identifiers, reused most recent
	// first.
	free   []wire.ObjectID
	server map[wire.ObjectID]*handleState
	serial uint64
}

func newObjectTable() objectTable {
	return objectTable{server: make(map[wire.ObjectID]*handleState)}
}

func (t *objectTable) nextGeneration() uint64 {
	t.serial++
	return t.serial
}

// registerRoot seats the display object in the first slot. Called
// once, on an empty table.
func (t *objectTable) registerRoot(iface *wire.Interface) Object {
	generation := t.nextGeneration()
	t.slots = append(t.slots, handleState{
		iface:      iface,
		version:    1,
		generation: generation,
		alive:      true,
	})
	return Object{id: wire.DisplayID, generation: generation, iface: iface, version: 1}
}

// allocate claims a client identifier for a new object, reusing the
// most recently recycled one if any. Exhaustion is an error the
// caller may retry after deletions are confirmed; it does not poison
// anything.
func (t *objectTable) allocate(iface *wire.Interface, version uint32) (Object, error) {
	var id wire.ObjectID
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if wire.ObjectID(len(t.slots)) >= wire.MaxClientID {
			return Object{}, ErrIDExhausted
		}
		t.slots = append(t.slots, handleState{})
		id = wire.ObjectID(len(t.slots))
	}
	state := &t.slots[id-1]
	*state = handleState{
		iface:      iface,
		version:    version,
		generation: t.nextGeneration(),
		alive:      true,
	}
	return Object{id: id, generation: state.generation, iface: iface, version: version}, nil
}

// unallocate returns an identifier claimed by allocate whose creating
// request never reached the out-ring. The peer has never seen the
// identifier, so it goes straight back on the free list.
func (t *objectTable) unallocate(o Object) {
	state := t.state(o.id)
	if state == nil || !state.alive || state.generation != o.generation {
		return
	}
	*state = handleState{}
	t.free = append(t.free, o.id)
}

// registerServer records a server-created object announced through a
// typed new-object event argument.
func (t *objectTable) registerServer(id wire.ObjectID, iface *wire.Interface, version uint32) error {
	if !id.ServerAllocated() {
		return fmt.Errorf("new object id %d is outside the server-allocated range", id)
	}
	if _, exists := t.server[id]; exists {
		return fmt.Errorf("server object id %d is already in use", id)
	}
	t.server[id] = &handleState{
		iface:      iface,
		version:    version,
		generation: t.nextGeneration(),
		alive:      true,
	}
	return nil
}

// state returns the record for an identifier, dead or alive, or nil
// if the identifier has never been seen (or has been recycled).
func (t *objectTable) state(id wire.ObjectID) *handleState {
	if id.ServerAllocated() {
		return t.server[id]
	}
	if id == 0 || int64(id) > int64(len(t.slots)) {
		return nil
	}
	state := &t.slots[id-1]
	if state.iface == nil {
		return nil
	}
	return state
}

// live resolves a handle for sending: the identifier must hold a live
// object and it must be the same incarnation the handle was taken
// from. Returns nil for dead, recycled, or foreign handles.
func (t *objectTable) live(o Object) *handleState {
	state := t.state(o.id)
	if state == nil || !state.alive || state.generation != o.generation {
		return nil
	}
	return state
}

// handle builds an Object for the identifier's current occupant.
func (t *objectTable) handle(id wire.ObjectID, state *handleState) Object {
	return Object{id: id, generation: state.generation, iface: state.iface, version: state.version}
}

// markDead flags the object as destroyed. The identifier itself stays
// claimed: client identifiers are reusable only after the display
// confirms deletion, server identifiers after removeServer.
func (t *objectTable) markDead(id wire.ObjectID) {
	if state := t.state(id); state != nil {
		state.alive = false
	}
}

// recycle returns a client identifier to the free list after the
// display confirms its deletion. The identifier must name a currently
// claimed slot; deletion of the display, of a server-range
// identifier, or of an identifier the client never allocated means
// the two sides disagree about the object table.
func (t *objectTable) recycle(id wire.ObjectID) error {
	if id.ServerAllocated() {
		return fmt.Errorf("deletion announced for server-allocated id %d", id)
	}
	if id == wire.DisplayID {
		return fmt.Errorf("deletion announced for the display")
	}
	if id == 0 || int64(id) > int64(len(t.slots)) || t.slots[id-1].iface == nil {
		return fmt.Errorf("deletion announced for unknown id %d", id)
	}
	t.slots[id-1] = handleState{}
	t.free = append(t.free, id)
	return nil
}

// removeServer forgets a destroyed server-created object. Server
// identifiers have no deletion handshake; the destructor event is the
// end of the identifier's life.
func (t *objectTable) removeServer(id wire.ObjectID) {
	delete(t.server, id)
}
