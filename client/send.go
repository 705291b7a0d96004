// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/wayline/transport"
	"github.com/bureau-foundation/wayline/wire"
)

// SendRequest encodes a request into the out-ring. Nothing reaches
// the socket until Flush; a full out-ring is flushed once without
// waiting, and if space is still short the request fails with
// ErrWouldBlock, fully retryable.
//
// The arguments must match the request's declared signature exactly.
// A stale or dead handle, a bad opcode, or a mismatched argument is
// an error return; the message never existed as far as the protocol
// is concerned and the connection stays usable.
//
// A destructor request marks the object dead on success. Its
// identifier is reused only after the display confirms the deletion.
func (c *Conn) SendRequest(obj Object, opcode uint16, args ...wire.Arg) error {
	if err := c.failed(); err != nil {
		return err
	}
	state := c.objects.live(obj)
	if state == nil {
		return fmt.Errorf("client: send to %s: object is not live", obj)
	}
	desc := obj.iface.RequestDesc(opcode)
	if desc == nil {
		return fmt.Errorf("client: %s has no request opcode %d", obj.iface.Name, opcode)
	}
	for _, spec := range desc.Signature {
		if spec.Kind == wire.KindNewID || spec.Kind == wire.KindAnyNewID {
			return fmt.Errorf("client: %s.%s constructs an object: use SendConstructor or BindGlobal", obj.iface.Name, desc.Name)
		}
	}
	if err := wire.ValidateArgs(desc.Signature, args); err != nil {
		return fmt.Errorf("client: %s.%s: %w", obj.iface.Name, desc.Name, err)
	}
	return c.enqueue(obj, opcode, desc, args)
}

// SendConstructor sends a request whose signature constructs a new
// object with a statically known interface, allocating the identifier
// and splicing it into the arguments. The caller passes values for
// every other signature position, in order. Returns the new object's
// handle; its version is inherited from the parent.
//
// The registry's bind request, whose constructed interface travels on
// the wire instead, goes through BindGlobal.
func (c *Conn) SendConstructor(obj Object, opcode uint16, args ...wire.Arg) (Object, error) {
	if err := c.failed(); err != nil {
		return Object{}, err
	}
	state := c.objects.live(obj)
	if state == nil {
		return Object{}, fmt.Errorf("client: send to %s: object is not live", obj)
	}
	desc := obj.iface.RequestDesc(opcode)
	if desc == nil {
		return Object{}, fmt.Errorf("client: %s has no request opcode %d", obj.iface.Name, opcode)
	}

	construct := -1
	for position, spec := range desc.Signature {
		switch spec.Kind {
		case wire.KindAnyNewID:
			return Object{}, fmt.Errorf("client: %s.%s does not fix the constructed interface: use BindGlobal", obj.iface.Name, desc.Name)
		case wire.KindNewID:
			construct = position
		}
	}
	if construct < 0 {
		return Object{}, fmt.Errorf("client: %s.%s does not construct an object", obj.iface.Name, desc.Name)
	}
	if len(args) != len(desc.Signature)-1 {
		return Object{}, fmt.Errorf("client: %s.%s takes %d arguments besides the new object, got %d",
			obj.iface.Name, desc.Name, len(desc.Signature)-1, len(args))
	}

	created, err := c.objects.allocate(desc.Signature[construct].Interface, obj.version)
	if err != nil {
		return Object{}, err
	}

	full := make([]wire.Arg, 0, len(desc.Signature))
	full = append(full, args[:construct]...)
	full = append(full, wire.NewID(created.id))
	full = append(full, args[construct:]...)

	if err := wire.ValidateArgs(desc.Signature, full); err != nil {
		c.objects.unallocate(created)
		return Object{}, fmt.Errorf("client: %s.%s: %w", obj.iface.Name, desc.Name, err)
	}
	if err := c.enqueue(obj, opcode, desc, full); err != nil {
		c.objects.unallocate(created)
		return Object{}, err
	}
	return created, nil
}

// enqueue writes a validated message into the out-ring, tracing it
// and applying destructor bookkeeping on success. On a full ring it
// flushes once without waiting and retries; a ring still too full
// yields ErrWouldBlock with nothing enqueued.
func (c *Conn) enqueue(obj Object, opcode uint16, desc *wire.MessageDesc, args []wire.Arg) error {
	msg := &wire.Message{Object: obj.id, Opcode: opcode, Args: args}
	err := c.socket.WriteMessage(msg)
	if errors.Is(err, transport.ErrWouldBlock) {
		if _, ferr := c.socket.Flush(); ferr != nil && !errors.Is(ferr, transport.ErrWouldBlock) {
			return c.poison(ferr)
		}
		err = c.socket.WriteMessage(msg)
	}
	if err != nil {
		// ErrWouldBlock (ring still full) and FramingError (an
		// unencodable message, which never touches the ring) both
		// leave the connection consistent.
		return fmt.Errorf("client: %s.%s: %w", obj.iface.Name, desc.Name, err)
	}

	c.trace(Outbound, obj, desc, opcode, msg.Size(), args)
	if desc.Destructor {
		c.objects.markDead(obj.id)
		delete(c.handlers, obj.id)
	}
	return nil
}
