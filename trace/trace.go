// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trace captures the messages crossing a connection into a
// verifiable file.
//
// A capture is a small container: an eight byte magic, a format
// version byte, a compression tag byte, the compressed stream of CBOR
// records, and a 32-byte keyed BLAKE3 trailer over the compressed
// payload. Recorder writes one through the client tracer hook; Reader
// refuses to yield records from a capture whose trailer does not
// match.
package trace

import (
	"errors"
	"fmt"
)

// captureMagic opens every capture file.
var captureMagic = [8]byte{'w', 'a', 'y', 'l', 'i', 'n', 'e', 0}

// captureVersion is the container format version written by this
// package. Readers reject other versions.
const captureVersion = 1

// digestSize is the length of the keyed BLAKE3 trailer.
const digestSize = 32

// headerSize covers the magic, the version byte and the compression
// tag byte.
const headerSize = len(captureMagic) + 2

// captureDomainKey keys the BLAKE3 trailer. The byte values are the
// ASCII encoding of the domain name, zero-padded to the 32 bytes
// keyed mode requires. Domain separation keeps a capture trailer from
// verifying as anything else that hashes the same bytes.
var captureDomainKey = [32]byte{
	'w', 'a', 'y', 'l', 'i', 'n', 'e', '.', 'c', 'a', 'p', 't', 'u', 'r', 'e', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var (
	// ErrBadMagic reports a file that does not begin with the capture
	// magic.
	ErrBadMagic = errors.New("trace: not a capture file")

	// ErrTruncated reports a capture too short to hold its header and
	// integrity trailer.
	ErrTruncated = errors.New("trace: capture truncated")

	// ErrDigestMismatch reports a capture whose integrity trailer does
	// not match its payload.
	ErrDigestMismatch = errors.New("trace: capture digest mismatch")
)

// Compression identifies the algorithm applied to the record stream.
// The tag is stored as one byte in the capture header. These values
// are format constants, changing them breaks capture compatibility.
type Compression uint8

const (
	// CompressionNone stores the record stream uncompressed.
	CompressionNone Compression = 0

	// CompressionLZ4 applies LZ4 frame compression. Fast, modest
	// ratio.
	CompressionLZ4 Compression = 1

	// CompressionZstd applies zstd compression. Better ratios for the
	// text-heavy record stream at more CPU cost.
	CompressionZstd Compression = 2
)

// String returns the human-readable name of a compression tag.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression tag from its string
// representation.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// Record is one captured message. Records are written to captures as
// CBOR with Core Deterministic Encoding, so the same session always
// produces identical payload bytes.
type Record struct {
	// Time is when the message crossed the connection, as Unix
	// nanoseconds from the connection clock.
	Time int64 `cbor:"time"`

	// Direction is "outbound" for requests and "inbound" for events.
	Direction string `cbor:"direction"`

	// Object is the wire identifier of the object the message
	// belongs to.
	Object uint32 `cbor:"object"`

	// Interface is the object's protocol interface name.
	Interface string `cbor:"interface"`

	// Version is the version the object was bound or created with.
	Version uint32 `cbor:"version"`

	// Opcode is the message opcode within the interface.
	Opcode uint16 `cbor:"opcode"`

	// Message is the request or event name from the interface
	// descriptor.
	Message string `cbor:"message"`

	// Size is the encoded message length in bytes, header included.
	// File descriptor arguments contribute nothing.
	Size int `cbor:"size"`

	// Args holds the arguments in debug notation. File descriptors
	// are recorded by presence only ("fd"): descriptor numbers are
	// process-local and meaningless in a capture.
	Args []string `cbor:"args,omitempty"`
}
