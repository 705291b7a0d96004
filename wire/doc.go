// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the Wayland wire format: message headers,
// argument encoding and decoding, and the interface descriptors that
// drive both.
//
// A message is two 32-bit header words (object id, then byte length
// in the high 16 bits and opcode in the low 16) followed by arguments
// packed in declared order, each padded to a 32-bit boundary. Byte
// order is the host's native order throughout: the protocol runs over
// a local socket, so both ends always agree. File descriptor
// arguments occupy no stream bytes; they travel as ancillary data and
// are matched to messages in declaration order by the transport.
//
// The codec is pure: encoding appends to a caller-provided slice and
// decoding walks a caller-provided body. Neither performs I/O or
// retains state between calls. Argument layout comes from
// [MessageDesc] signatures; resolving which descriptor applies to an
// incoming message is the connection's job, since only it knows which
// object ids are live and what interface each one speaks.
//
// Decoding never guesses: any byte sequence that does not exactly
// match the declared signature (truncation, a null in a non-nullable
// position, a string without its NUL terminator, trailing bytes) is a
// [FramingError], and a framing error is unrecoverable for the stream
// that produced it.
package wire
