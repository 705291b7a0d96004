// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/wayline/wire"
)

// Direction distinguishes requests from events in a trace.
type Direction uint8

const (
	// Outbound is a request this client sent.
	Outbound Direction = iota
	// Inbound is an event the compositor sent.
	Inbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Record describes one message as it crossed the connection:
// requests when they enter the out-ring, events after decoding and
// before their handler runs.
//
// A Record is valid only for the duration of the Trace call. Args
// aliases the dispatch path's storage and file descriptor arguments
// are owned elsewhere; tracers that keep anything must copy it.
type Record struct {
	Time      time.Time
	Direction Direction
	Object    wire.ObjectID
	Interface string
	Version   uint32
	Opcode    uint16
	// Message is the request or event name from the descriptor.
	Message string
	// Size is the encoded length in bytes, header included. File
	// descriptors contribute nothing.
	Size int
	Args []wire.Arg
}

// Tracer observes messages crossing a connection. Implementations
// run synchronously on the dispatch and send paths and must not call
// back into the connection.
type Tracer interface {
	Trace(record Record)
}

// trace reports one message to the debug log and the tracer, in that
// order. Tracing never reorders or delays the message itself.
func (c *Conn) trace(dir Direction, obj Object, desc *wire.MessageDesc, opcode uint16, size int, args []wire.Arg) {
	if c.debug {
		c.logger.Debug(classicLine(dir, obj, desc, args))
	}
	if c.tracer != nil {
		c.tracer.Trace(Record{
			Time:      c.clk.Now(),
			Direction: dir,
			Object:    obj.id,
			Interface: obj.iface.Name,
			Version:   obj.version,
			Opcode:    opcode,
			Message:   desc.Name,
			Size:      size,
			Args:      args,
		})
	}
}

// classicLine renders a message in the traditional debug notation,
// for example "-> wl_display@1.sync(new id wl_callback@3)".
func classicLine(dir Direction, obj Object, desc *wire.MessageDesc, args []wire.Arg) string {
	var b strings.Builder
	if dir == Outbound {
		b.WriteString("-> ")
	} else {
		b.WriteString("<- ")
	}
	fmt.Fprintf(&b, "%s@%d.%s(", obj.iface.Name, obj.id, desc.Name)
	for position, arg := range args {
		if position > 0 {
			b.WriteString(", ")
		}
		spec := &desc.Signature[position]
		if spec.Kind == wire.KindNewID && spec.Interface != nil {
			fmt.Fprintf(&b, "new id %s@%d", spec.Interface.Name, uint32(arg.(wire.NewID)))
			continue
		}
		if stringer, ok := arg.(fmt.Stringer); ok {
			b.WriteString(stringer.String())
		} else {
			fmt.Fprintf(&b, "%v", arg)
		}
	}
	b.WriteByte(')')
	return b.String()
}
