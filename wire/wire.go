// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the encoded size of a message header in bytes.
	HeaderSize = 8

	// MaxMessageSize is the largest legal encoded message, header
	// included. The format's length field could express more, but the
	// protocol caps messages at 4 KiB; a peer declaring a larger
	// length is malformed, not ambitious.
	MaxMessageSize = 4096

	// wordSize is the argument alignment unit.
	wordSize = 4
)

// ObjectID identifies a protocol object within one connection. Zero
// is never a valid identifier; it encodes a null object reference
// where a signature permits one.
type ObjectID uint32

const (
	// DisplayID is the identifier of the root object, fixed by the
	// protocol. It exists from connection start and is never
	// allocated or reclaimed.
	DisplayID ObjectID = 1

	// MaxClientID is the largest identifier the client side may
	// allocate.
	MaxClientID ObjectID = 0xFEFFFFFF

	// MinServerID is the smallest identifier in the server-allocated
	// range.
	MinServerID ObjectID = 0xFF000000
)

// ServerAllocated reports whether the identifier lies in the range
// reserved for server-created objects.
func (id ObjectID) ServerAllocated() bool {
	return id >= MinServerID
}

// Header is the fixed two-word prefix of every message.
type Header struct {
	Object ObjectID
	// Size is the total message length in bytes, header included.
	Size uint16
	// Opcode selects a request or event within the object's
	// interface. Requests and events are numbered independently.
	Opcode uint16
}

// ParseHeader decodes a message header from the first HeaderSize
// bytes of p and validates its fixed invariants: a non-null object
// id and a length that is at least HeaderSize, word-aligned, and
// within MaxMessageSize.
func ParseHeader(p []byte) (Header, error) {
	if len(p) < HeaderSize {
		return Header{}, framingErrorf("header needs %d bytes, have %d", HeaderSize, len(p))
	}
	object := ObjectID(binary.NativeEndian.Uint32(p))
	sizeOpcode := binary.NativeEndian.Uint32(p[4:])
	header := Header{
		Object: object,
		Size:   uint16(sizeOpcode >> 16),
		Opcode: uint16(sizeOpcode),
	}
	if header.Object == 0 {
		return Header{}, framingErrorf("message header with null object id")
	}
	if header.Size < HeaderSize {
		return Header{}, framingErrorf("message length %d is shorter than the header", header.Size)
	}
	if header.Size%wordSize != 0 {
		return Header{}, framingErrorf("message length %d is not word-aligned", header.Size)
	}
	if int(header.Size) > MaxMessageSize {
		return Header{}, framingErrorf("message length %d exceeds the %d-byte cap", header.Size, MaxMessageSize)
	}
	return header, nil
}

// FramingError reports bytes that violate the wire format or disagree
// with the declared message signature. A framing error is fatal to
// the connection that read the bytes: the stream position can no
// longer be trusted, so no further messages can be framed.
type FramingError struct {
	Detail string
}

func (e *FramingError) Error() string {
	return "wire: " + e.Detail
}

func framingErrorf(format string, args ...any) error {
	return &FramingError{Detail: fmt.Sprintf(format, args...)}
}

// padded rounds n up to the next word boundary.
func padded(n int) int {
	return (n + wordSize - 1) &^ (wordSize - 1)
}
