// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/transport"
	"github.com/bureau-foundation/wayline/wire"
)

// Dispatch decodes and dispatches buffered events in arrival order.
// If no complete message is buffered it first receives from the
// socket, waiting per the mode (a partially arrived message keeps
// the receive going; its bytes stay buffered across would-block
// returns and cancellations). Once at least one complete message is
// buffered, every complete buffered message is dispatched before
// returning.
//
// Returns the number of events dispatched. Deletion confirmations
// consumed as table bookkeeping are not counted. ErrWouldBlock and
// context cancellation are clean retryable outcomes; wire-level
// failures poison the connection.
func (c *Conn) Dispatch(ctx context.Context) (int, error) {
	return c.dispatchWith(ctx, c.waiter)
}

func (c *Conn) dispatchWith(ctx context.Context, w waiter) (int, error) {
	if err := c.failed(); err != nil {
		return 0, err
	}
	if c.dispatching {
		return 0, ErrReentrantDispatch
	}
	c.dispatching = true
	defer func() { c.dispatching = false }()

	for {
		complete, err := c.bufferedComplete()
		if err != nil {
			return 0, c.poison(err)
		}
		if complete {
			break
		}
		if _, err := c.socket.Fill(); err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				if werr := w.waitReadable(ctx); werr != nil {
					return 0, werr
				}
				continue
			}
			return 0, c.poison(err)
		}
	}

	dispatched := 0
	for {
		complete, err := c.bufferedComplete()
		if err != nil {
			return dispatched, c.poison(err)
		}
		if !complete {
			return dispatched, nil
		}
		delivered, err := c.dispatchNext()
		if err != nil {
			return dispatched, err
		}
		if delivered {
			dispatched++
		}
	}
}

// bufferedComplete reports whether the in-ring holds at least one
// complete message. A malformed header is fatal.
func (c *Conn) bufferedComplete() (bool, error) {
	header, ok, err := c.socket.PeekHeader()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return c.socket.Buffered() >= int(header.Size), nil
}

// dispatchNext decodes and dispatches the next buffered message,
// which the caller has verified is complete. Reports whether an
// event was delivered (as opposed to consumed as bookkeeping).
// Errors from this point are terminal: the message was consumed from
// the ring, so a failure to dispatch it cannot be retried.
func (c *Conn) dispatchNext() (bool, error) {
	header, _, err := c.socket.PeekHeader()
	if err != nil {
		return false, c.poison(err)
	}

	state := c.objects.state(header.Object)
	if state == nil {
		return false, c.poison(&wire.FramingError{
			Detail: fmt.Sprintf("event for unknown object id %d", header.Object),
		})
	}
	if !state.alive {
		return false, c.poison(&wire.FramingError{
			Detail: fmt.Sprintf("event for destroyed object %s@%d", state.iface.Name, header.Object),
		})
	}
	desc := state.iface.EventDesc(header.Opcode)
	if desc == nil {
		return false, c.poison(&wire.FramingError{
			Detail: fmt.Sprintf("%s@%d has no event opcode %d", state.iface.Name, header.Object, header.Opcode),
		})
	}

	args, err := c.socket.ReadMessage(desc)
	if err != nil {
		return false, c.poison(err)
	}

	obj := c.objects.handle(header.Object, state)
	c.trace(Inbound, obj, desc, header.Opcode, int(header.Size), args)

	// Seat server-created objects before any handler runs, so the
	// handler (and later messages) can resolve them.
	for position, spec := range desc.Signature {
		if spec.Kind != wire.KindNewID {
			continue
		}
		id := wire.ObjectID(args[position].(wire.NewID))
		if err := c.objects.registerServer(id, spec.Interface, obj.version); err != nil {
			return false, c.poison(&wire.FramingError{Detail: err.Error()})
		}
	}

	if obj.iface == protocol.Display {
		switch header.Opcode {
		case protocol.DisplayEventError:
			return false, c.displayError(args)
		case protocol.DisplayEventDeleteID:
			id := wire.ObjectID(args[0].(wire.Uint))
			if err := c.objects.recycle(id); err != nil {
				return false, c.poison(&wire.FramingError{Detail: err.Error()})
			}
			delete(c.handlers, id)
			return false, nil
		}
	}

	if obj.iface == protocol.Registry {
		c.dispatchRegistry(header.Opcode, args)
		return true, nil
	}

	handler, ok := c.handlers[header.Object]
	if !ok {
		handler = c.defaultHandler
	}
	if handler != nil {
		handler(c, Event{Object: obj, Name: desc.Name, Opcode: header.Opcode, Args: args})
	} else {
		closeFDArgs(args)
		c.logger.Debug("event dropped: no handler",
			"object", obj.String(),
			"event", desc.Name)
	}

	if desc.Destructor {
		c.objects.markDead(header.Object)
		delete(c.handlers, header.Object)
		if header.Object.ServerAllocated() {
			c.objects.removeServer(header.Object)
		}
	}
	return true, nil
}

// displayError turns the display's error event into the connection's
// terminal ProtocolError.
func (c *Conn) displayError(args []wire.Arg) error {
	perr := &ProtocolError{
		Object:  wire.ObjectID(args[0].(wire.Object)),
		Code:    uint32(args[1].(wire.Uint)),
		Message: string(args[2].(wire.String)),
	}
	if state := c.objects.state(perr.Object); state != nil {
		perr.Interface = state.iface.Name
	}
	c.logger.Error("fatal protocol error",
		"object_id", uint32(perr.Object),
		"interface", perr.Interface,
		"code", perr.Code,
		"message", perr.Message)
	return c.poison(perr)
}

// Roundtrip sends a sync request, flushes, and dispatches until the
// compositor's answering done event arrives, proving every prior
// request has been processed. Events queued ahead of the done event
// are dispatched normally, in order.
//
// Roundtrip always waits: in non-blocking mode it falls back to
// blocking waits, in cooperative mode it suspends the calling
// goroutine. Cancellation returns the context's error and leaves the
// connection usable; the done event is simply ignored when it
// arrives later.
func (c *Conn) Roundtrip(ctx context.Context) error {
	if err := c.failed(); err != nil {
		return err
	}
	if c.dispatching {
		return ErrReentrantDispatch
	}
	w := c.roundtripWaiter()

	var callback Object
	for {
		var err error
		callback, err = c.SendConstructor(c.display, protocol.DisplaySync)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}
		if err := c.flushWith(ctx, w); err != nil {
			return err
		}
	}

	done := false
	if err := c.OnEvent(callback, func(*Conn, Event) { done = true }); err != nil {
		return err
	}
	if err := c.flushWith(ctx, w); err != nil {
		return err
	}
	for !done {
		if _, err := c.dispatchWith(ctx, w); err != nil {
			return err
		}
	}
	return nil
}
