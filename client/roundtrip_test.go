// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/wayline/lib/testutil"
	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/wire"
)

// expectSync reads the sync request the roundtrip flushed and returns
// the callback identifier it created.
func expectSync(p *peer) wire.ObjectID {
	p.t.Helper()
	args := p.expectRequest(wire.DisplayID, protocol.Display, protocol.DisplaySync)
	return wire.ObjectID(args[0].(wire.NewID))
}

// completeSync answers a sync: the done event, then the deletion of
// the callback identifier.
func completeSync(p *peer, callback wire.ObjectID) {
	p.t.Helper()
	p.send(callback, protocol.CallbackEventDone, wire.Uint(1))
	p.send(wire.DisplayID, protocol.DisplayEventDeleteID, wire.Uint(uint32(callback)))
}

// runRoundtrip exercises a full roundtrip against a scripted peer.
// The roundtrip runs on its own goroutine (it blocks); the peer side
// stays on the test goroutine. Events sent before the done event must
// be dispatched before Roundtrip returns.
func runRoundtrip(t *testing.T, mode Mode) {
	t.Helper()
	conn, p := newTestConn(t, Options{Mode: mode})

	var seen []string
	conn.ObserveRegistry(func(_ *Conn, event RegistryEvent) {
		seen = append(seen, event.Global.Interface)
	})

	errCh := make(chan error, 1)
	go func() { errCh <- conn.Roundtrip(context.Background()) }()

	args := p.expectRequest(wire.DisplayID, protocol.Display, protocol.DisplayGetRegistry)
	registry := wire.ObjectID(args[0].(wire.NewID))
	callback := expectSync(p)

	announce(p, registry, 7, "test_gadget", 3)
	completeSync(p, callback)

	if err := testutil.RequireReceive(t, errCh, 5*time.Second, "roundtrip"); err != nil {
		t.Fatalf("roundtrip: %v", err)
	}

	// The announcement preceded the done event on the wire, so it
	// was dispatched before the roundtrip completed.
	if len(seen) != 1 || seen[0] != "test_gadget" {
		t.Fatalf("globals observed during roundtrip: %v", seen)
	}
	if globals := conn.Globals(); len(globals) != 1 {
		t.Fatalf("snapshot after roundtrip: %+v", globals)
	}
}

func TestRoundtripBlocking(t *testing.T) {
	t.Parallel()
	runRoundtrip(t, Blocking)
}

func TestRoundtripNonBlockingStillWaits(t *testing.T) {
	t.Parallel()
	runRoundtrip(t, NonBlocking)
}

func TestRoundtripCooperative(t *testing.T) {
	t.Parallel()
	runRoundtrip(t, Cooperative)
}

func TestRoundtripCancelLeavesConnectionUsable(t *testing.T) {
	t.Parallel()
	conn, p := newTestConn(t, Options{Mode: Blocking})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Roundtrip(ctx) }()

	p.expectRequest(wire.DisplayID, protocol.Display, protocol.DisplayGetRegistry)
	abandoned := expectSync(p)

	cancel()
	if err := testutil.RequireReceive(t, errCh, 5*time.Second, "cancelled roundtrip"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled roundtrip returned %v", err)
	}

	// Cancellation is not poison. A second roundtrip works, and the
	// late answer to the abandoned sync is dispatched harmlessly.
	go func() { errCh <- conn.Roundtrip(context.Background()) }()
	second := expectSync(p)
	if second == abandoned {
		t.Fatal("abandoned callback identifier reused before deletion was confirmed")
	}

	completeSync(p, abandoned)
	completeSync(p, second)

	if err := testutil.RequireReceive(t, errCh, 5*time.Second, "second roundtrip"); err != nil {
		t.Fatalf("roundtrip after cancellation: %v", err)
	}
}
