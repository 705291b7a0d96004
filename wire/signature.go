// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// ArgKind is the declared type of one signature position.
type ArgKind uint8

const (
	// KindInt is a signed 32-bit integer.
	KindInt ArgKind = iota
	// KindUint is an unsigned 32-bit integer.
	KindUint
	// KindFixed is a signed 24.8 fixed-point number.
	KindFixed
	// KindObject is a non-nullable object reference.
	KindObject
	// KindOptObject is a nullable object reference.
	KindOptObject
	// KindNewID creates an object of the interface named by the
	// ArgSpec.
	KindNewID
	// KindAnyNewID creates an object whose interface and version
	// travel on the wire (the registry bind form).
	KindAnyNewID
	// KindString is a non-nullable string.
	KindString
	// KindOptString is a nullable string.
	KindOptString
	// KindArray is a length-prefixed byte blob.
	KindArray
	// KindFD is a file descriptor, carried out of band.
	KindFD
)

// String returns the descriptor-file spelling of the kind.
func (k ArgKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFixed:
		return "fixed"
	case KindObject:
		return "object"
	case KindOptObject:
		return "object?"
	case KindNewID:
		return "new_id"
	case KindAnyNewID:
		return "new_id?"
	case KindString:
		return "string"
	case KindOptString:
		return "string?"
	case KindArray:
		return "array"
	case KindFD:
		return "fd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ArgSpec is one position of a message signature.
type ArgSpec struct {
	// Name is the argument's declared name. Diagnostic only; it never
	// affects the encoding.
	Name string

	Kind ArgKind

	// Interface is the constructed object's interface for KindNewID
	// positions and nil for every other kind. For KindAnyNewID the
	// interface is not statically known: it is carried in the
	// message itself.
	Interface *Interface
}

// MessageDesc describes one request or event: its name, argument
// signature, and whether it ends the lifetime of the object it is
// addressed to.
type MessageDesc struct {
	Name      string
	Signature []ArgSpec

	// Destructor marks a message after which the addressed object is
	// dead. For requests the client marks the object dead on send;
	// for events, after the handler returns. The identifier itself is
	// reclaimed only when the display confirms deletion.
	Destructor bool
}

// Interface describes a protocol interface: its name, the highest
// version this descriptor covers, and the request and event
// signatures in opcode order. Descriptors are immutable once built
// and compared by pointer identity.
type Interface struct {
	Name     string
	Version  uint32
	Requests []MessageDesc
	Events   []MessageDesc
}

func (i *Interface) String() string {
	if i == nil {
		return "<nil interface>"
	}
	return i.Name
}

// RequestDesc returns the descriptor for a request opcode, or nil if
// the opcode is out of range.
func (i *Interface) RequestDesc(opcode uint16) *MessageDesc {
	if int(opcode) >= len(i.Requests) {
		return nil
	}
	return &i.Requests[opcode]
}

// EventDesc returns the descriptor for an event opcode, or nil if the
// opcode is out of range.
func (i *Interface) EventDesc(opcode uint16) *MessageDesc {
	if int(opcode) >= len(i.Events) {
		return nil
	}
	return &i.Events[opcode]
}

// ValidateArgs checks args against a declared signature: the count
// must match exactly and every value must be the kind its position
// declares, with null values only in nullable positions. This runs on
// every send; messages that fail never reach the wire.
func ValidateArgs(signature []ArgSpec, args []Arg) error {
	if len(args) != len(signature) {
		return fmt.Errorf("signature has %d arguments, got %d", len(signature), len(args))
	}
	for position, spec := range signature {
		if err := validateArg(spec, args[position]); err != nil {
			return fmt.Errorf("argument %d (%s): %w", position, spec.Name, err)
		}
	}
	return nil
}

func validateArg(spec ArgSpec, arg Arg) error {
	switch spec.Kind {
	case KindInt:
		if _, ok := arg.(Int); ok {
			return nil
		}
	case KindUint:
		if _, ok := arg.(Uint); ok {
			return nil
		}
	case KindFixed:
		if _, ok := arg.(Fixed); ok {
			return nil
		}
	case KindObject:
		if object, ok := arg.(Object); ok {
			if object == 0 {
				return fmt.Errorf("null object in non-nullable position")
			}
			return nil
		}
	case KindOptObject:
		if _, ok := arg.(Object); ok {
			return nil
		}
	case KindNewID:
		if id, ok := arg.(NewID); ok {
			if id == 0 {
				return fmt.Errorf("null new-object id")
			}
			return nil
		}
	case KindAnyNewID:
		if value, ok := arg.(AnyNewID); ok {
			if value.ID == 0 {
				return fmt.Errorf("null new-object id")
			}
			if value.Interface == "" {
				return fmt.Errorf("empty interface name")
			}
			return nil
		}
	case KindString:
		switch arg.(type) {
		case String:
			return nil
		case NullString:
			return fmt.Errorf("null string in non-nullable position")
		}
	case KindOptString:
		switch arg.(type) {
		case String, NullString:
			return nil
		}
	case KindArray:
		if _, ok := arg.(Array); ok {
			return nil
		}
	case KindFD:
		if fd, ok := arg.(FD); ok {
			if fd.File == nil {
				return fmt.Errorf("nil file")
			}
			return nil
		}
	default:
		return fmt.Errorf("unknown signature kind %v", spec.Kind)
	}
	return fmt.Errorf("want %v, got %T", spec.Kind, arg)
}
