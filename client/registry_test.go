// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"strings"
	"testing"

	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/wire"
)

func announce(p *peer, registry wire.ObjectID, name uint32, iface string, version uint32) {
	p.send(registry, protocol.RegistryEventGlobal,
		wire.Uint(name), wire.String(iface), wire.Uint(version))
}

func TestRegistrySnapshotTracksAnnouncements(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: NonBlocking})
	drainHandshake(t, conn, p)
	registry := conn.Registry().ID()

	announce(p, registry, 7, "test_gadget", 3)
	announce(p, registry, 2, "test_seat", 9)
	mustDispatch(t, conn, 2)

	globals := conn.Globals()
	if len(globals) != 2 {
		t.Fatalf("snapshot has %d globals, want 2", len(globals))
	}
	if globals[0].Name != 2 || globals[0].Interface != "test_seat" || globals[0].Version != 9 {
		t.Fatalf("snapshot[0] = %+v", globals[0])
	}
	if globals[1].Name != 7 || globals[1].Interface != "test_gadget" {
		t.Fatalf("snapshot[1] = %+v", globals[1])
	}

	p.send(registry, protocol.RegistryEventGlobalRemove, wire.Uint(2))
	mustDispatch(t, conn, 1)

	globals = conn.Globals()
	if len(globals) != 1 || globals[0].Name != 7 {
		t.Fatalf("snapshot after removal = %+v", globals)
	}
}

func TestRegistryFanoutReachesEveryObserver(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: NonBlocking})
	drainHandshake(t, conn, p)
	registry := conn.Registry().ID()

	var first, second []RegistryEvent
	removeFirst := conn.ObserveRegistry(func(_ *Conn, event RegistryEvent) {
		first = append(first, event)
	})
	conn.ObserveRegistry(func(_ *Conn, event RegistryEvent) {
		second = append(second, event)
	})

	announce(p, registry, 7, "test_gadget", 3)
	mustDispatch(t, conn, 1)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("announcement reached %d/%d observers, want both", len(first), len(second))
	}
	if first[0].Removed || first[0].Global.Interface != "test_gadget" {
		t.Fatalf("observer saw %+v", first[0])
	}

	removeFirst()
	removeFirst() // removal is idempotent

	p.send(registry, protocol.RegistryEventGlobalRemove, wire.Uint(7))
	mustDispatch(t, conn, 1)
	if len(first) != 1 {
		t.Fatal("removed observer still receiving events")
	}
	if len(second) != 2 {
		t.Fatalf("remaining observer saw %d events, want 2", len(second))
	}
	if !second[1].Removed || second[1].Global.Name != 7 || second[1].Global.Interface != "test_gadget" {
		t.Fatalf("removal event carried %+v", second[1])
	}
}

func TestRegistryObserverRemovalDuringFanout(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: NonBlocking})
	drainHandshake(t, conn, p)
	registry := conn.Registry().ID()

	var events []string
	var removeSecond func()
	conn.ObserveRegistry(func(_ *Conn, event RegistryEvent) {
		events = append(events, "first")
		removeSecond()
	})
	removeSecond = conn.ObserveRegistry(func(_ *Conn, event RegistryEvent) {
		events = append(events, "second")
	})

	// Removal from inside an observer takes effect from the next
	// event: the current fanout still reaches everyone.
	announce(p, registry, 7, "test_gadget", 3)
	mustDispatch(t, conn, 1)
	announce(p, registry, 8, "test_seat", 1)
	mustDispatch(t, conn, 1)

	want := []string{"first", "second", "first"}
	if len(events) != len(want) {
		t.Fatalf("fanout log %v, want %v", events, want)
	}
	for position := range want {
		if events[position] != want[position] {
			t.Fatalf("fanout log %v, want %v", events, want)
		}
	}
}

func TestBindGlobalValidation(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: NonBlocking})
	drainHandshake(t, conn, p)
	announce(p, conn.Registry().ID(), 7, "test_gadget", 2)
	mustDispatch(t, conn, 1)
	advertised := findGlobal(t, conn, "test_gadget")

	tests := []struct {
		name    string
		global  Global
		iface   *wire.Interface
		version uint32
		want    string
	}{
		{"nil_interface", advertised, nil, 1, "nil interface"},
		{"interface_mismatch", advertised, testPart, 1, "not test_part"},
		{"version_zero", advertised, testGadget, 0, "version 0"},
		{"above_advertised", advertised, testGadget, 3, "advertises up to 2"},
		{"above_descriptor", Global{Name: 7, Interface: "test_gadget", Version: 9}, testGadget, 4, "descriptor covers up to 3"},
		{"unknown_name", Global{Name: 50, Interface: "test_gadget", Version: 2}, testGadget, 1, "not currently advertised"},
	}
	for _, tt := range tests {
		_, err := conn.BindGlobal(tt.global, tt.iface, tt.version)
		if err == nil {
			t.Fatalf("%s: bind succeeded", tt.name)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}

	// The advertised version bounds the bind even when the
	// descriptor could go higher.
	obj, err := conn.BindGlobal(advertised, testGadget, 2)
	if err != nil {
		t.Fatalf("bind at advertised version: %v", err)
	}
	if obj.Version() != 2 {
		t.Fatalf("bound version %d, want 2", obj.Version())
	}
}

func TestBindGlobalAfterRemovalFails(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: NonBlocking})
	drainHandshake(t, conn, p)
	registry := conn.Registry().ID()

	announce(p, registry, 7, "test_gadget", 3)
	mustDispatch(t, conn, 1)
	advertised := findGlobal(t, conn, "test_gadget")

	p.send(registry, protocol.RegistryEventGlobalRemove, wire.Uint(7))
	mustDispatch(t, conn, 1)

	if _, err := conn.BindGlobal(advertised, testGadget, 3); err == nil {
		t.Fatal("bind of a withdrawn global succeeded")
	}
}

func TestRegistryRejectsPerObjectHandler(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: NonBlocking})
	drainHandshake(t, conn, p)

	err := conn.OnEvent(conn.Registry(), func(*Conn, Event) {})
	if err == nil || !strings.Contains(err.Error(), "ObserveRegistry") {
		t.Fatalf("per-object registry handler: %v", err)
	}
}
