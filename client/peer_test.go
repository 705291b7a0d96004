// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/bureau-foundation/wayline/lib/testutil"
	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/wire"
)

// Interfaces for a small fake compositor. test_gadget is bound from
// the registry; test_part objects hang off it, created by either
// side.
var testPart = &wire.Interface{
	Name:    "test_part",
	Version: 3,
	Requests: []wire.MessageDesc{
		{Name: "activate", Signature: []wire.ArgSpec{{Name: "serial", Kind: wire.KindUint}}},
		{Name: "destroy", Destructor: true},
	},
	Events: []wire.MessageDesc{
		{Name: "ready", Signature: []wire.ArgSpec{{Name: "serial", Kind: wire.KindUint}}},
		{Name: "retired", Destructor: true},
	},
}

var testGadget = &wire.Interface{
	Name:    "test_gadget",
	Version: 3,
	Requests: []wire.MessageDesc{
		{Name: "poke", Signature: []wire.ArgSpec{{Name: "serial", Kind: wire.KindUint}}},
		{Name: "create_part", Signature: []wire.ArgSpec{{Name: "id", Kind: wire.KindNewID, Interface: testPart}}},
		{Name: "destroy", Destructor: true},
		{Name: "set_label", Signature: []wire.ArgSpec{{Name: "text", Kind: wire.KindString}}},
	},
	Events: []wire.MessageDesc{
		{Name: "ping", Signature: []wire.ArgSpec{{Name: "serial", Kind: wire.KindUint}}},
		{Name: "spawned", Signature: []wire.ArgSpec{{Name: "id", Kind: wire.KindNewID, Interface: testPart}}},
		{Name: "gone", Destructor: true},
		{Name: "borrow", Signature: []wire.ArgSpec{{Name: "file", Kind: wire.KindFD}}},
	},
}

const (
	gadgetPoke uint16 = iota
	gadgetCreatePart
	gadgetDestroy
	gadgetSetLabel
)

const (
	gadgetEventPing uint16 = iota
	gadgetEventSpawned
	gadgetEventGone
	gadgetEventBorrow
)

const (
	partActivate uint16 = iota
	partDestroy
)

const (
	partEventReady uint16 = iota
	partEventRetired
)

const gadgetGlobalName uint32 = 7

// peer drives the far end of the socketpair: it reads the client's
// requests with blocking reads and writes raw event bytes. All peer
// methods must run on the test's main goroutine.
type peer struct {
	t    *testing.T
	file *os.File
}

func (p *peer) writeRaw(b []byte) {
	p.t.Helper()
	if _, err := p.file.Write(b); err != nil {
		p.t.Fatalf("peer write: %v", err)
	}
}

// send writes one complete event.
func (p *peer) send(object wire.ObjectID, opcode uint16, args ...wire.Arg) {
	p.t.Helper()
	msg := &wire.Message{Object: object, Opcode: opcode, Args: args}
	p.writeRaw(msg.Append(nil))
}

// encode returns the wire bytes of an event without sending them.
func encode(object wire.ObjectID, opcode uint16, args ...wire.Arg) []byte {
	msg := &wire.Message{Object: object, Opcode: opcode, Args: args}
	return msg.Append(nil)
}

type noFDs struct{}

func (noFDs) PopFD() (*os.File, bool) { return nil, false }

// readRequest reads and decodes the next request, which must belong
// to the given interface.
func (p *peer) readRequest(iface *wire.Interface) (wire.Header, []wire.Arg) {
	p.t.Helper()
	var head [wire.HeaderSize]byte
	if _, err := io.ReadFull(p.file, head[:]); err != nil {
		p.t.Fatalf("peer read header: %v", err)
	}
	header, err := wire.ParseHeader(head[:])
	if err != nil {
		p.t.Fatalf("peer parse header: %v", err)
	}
	body := make([]byte, int(header.Size)-wire.HeaderSize)
	if _, err := io.ReadFull(p.file, body); err != nil {
		p.t.Fatalf("peer read body: %v", err)
	}
	desc := iface.RequestDesc(header.Opcode)
	if desc == nil {
		p.t.Fatalf("peer: %s has no request opcode %d", iface.Name, header.Opcode)
	}
	args, err := wire.DecodeBody(desc, body, noFDs{})
	if err != nil {
		p.t.Fatalf("peer decode %s.%s: %v", iface.Name, desc.Name, err)
	}
	return header, args
}

// expectRequest reads the next request and asserts its addressee and
// opcode.
func (p *peer) expectRequest(object wire.ObjectID, iface *wire.Interface, opcode uint16) []wire.Arg {
	p.t.Helper()
	header, args := p.readRequest(iface)
	if header.Object != object || header.Opcode != opcode {
		p.t.Fatalf("peer read %d.%d, want %d.%d (%s.%s)",
			header.Object, header.Opcode, object, opcode, iface.Name, iface.RequestDesc(opcode).Name)
	}
	return args
}

// announceGadget advertises the test_gadget global on the registry.
func (p *peer) announceGadget(registry wire.ObjectID) {
	p.t.Helper()
	p.send(registry, protocol.RegistryEventGlobal,
		wire.Uint(gadgetGlobalName), wire.String("test_gadget"), wire.Uint(3))
}

func newTestConn(t *testing.T, options Options) (*Conn, *peer) {
	t.Helper()
	local, remote := testutil.SocketPair(t)
	conn, err := New(local, options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, &peer{t: t, file: remote}
}

// drainHandshake flushes and consumes the registry bind performed at
// connection time.
func drainHandshake(t *testing.T, conn *Conn, p *peer) {
	t.Helper()
	if err := conn.Flush(context.Background()); err != nil {
		t.Fatalf("flush handshake: %v", err)
	}
	args := p.expectRequest(wire.DisplayID, protocol.Display, protocol.DisplayGetRegistry)
	if got := wire.ObjectID(args[0].(wire.NewID)); got != conn.Registry().ID() {
		t.Fatalf("handshake bound registry %d, connection reports %d", got, conn.Registry().ID())
	}
}

func mustDispatch(t *testing.T, conn *Conn, want int) {
	t.Helper()
	n, err := conn.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if n != want {
		t.Fatalf("dispatched %d events, want %d", n, want)
	}
}

func findGlobal(t *testing.T, conn *Conn, iface string) Global {
	t.Helper()
	for _, global := range conn.Globals() {
		if global.Interface == iface {
			return global
		}
	}
	t.Fatalf("no %s global advertised", iface)
	return Global{}
}

// newBoundConn builds the common starting point for dispatch tests: a
// connection past its handshake with one test_gadget bound.
func newBoundConn(t *testing.T, options Options) (*Conn, *peer, Object) {
	t.Helper()
	conn, p := newTestConn(t, options)
	drainHandshake(t, conn, p)

	p.announceGadget(conn.Registry().ID())
	mustDispatch(t, conn, 1)

	gadget := bindGadget(t, conn, p)
	return conn, p, gadget
}

// bindGadget binds the announced test_gadget global and consumes the
// bind request on the peer side.
func bindGadget(t *testing.T, conn *Conn, p *peer) Object {
	t.Helper()
	global := findGlobal(t, conn, "test_gadget")
	gadget, err := conn.BindGlobal(global, testGadget, 3)
	if err != nil {
		t.Fatalf("bind test_gadget: %v", err)
	}
	if err := conn.Flush(context.Background()); err != nil {
		t.Fatalf("flush bind: %v", err)
	}
	args := p.expectRequest(conn.Registry().ID(), protocol.Registry, protocol.RegistryBind)
	bound := args[1].(wire.AnyNewID)
	if bound.Interface != "test_gadget" || bound.ID != gadget.ID() {
		t.Fatalf("bind carried %s@%d, want test_gadget@%d", bound.Interface, bound.ID, gadget.ID())
	}
	return gadget
}
