// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the buffered Unix-socket layer under a
// Wayland client connection.
//
// A [Socket] owns the raw socket descriptor and two fixed-capacity
// byte rings: outbound requests accumulate in a 4 KiB ring until
// [Socket.Flush] drains them with a single sendmsg per call, and
// [Socket.Fill] performs a single recvmsg into the free space of an
// 8 KiB inbound ring. All syscalls run in non-blocking form; a socket
// that cannot make progress reports [ErrWouldBlock] and leaves every
// buffer byte and queued descriptor in place, so callers decide
// whether to poll, suspend, or give up. The transport never waits.
//
// File descriptors ride the same stream as SCM_RIGHTS ancillary data.
// Outbound descriptors are tagged with the stream offset of the
// message that carries them; Flush attaches the descriptors whose
// messages fall inside the flushed byte range (at most 28 per
// sendmsg) and truncates the range at the first message whose
// descriptors do not fit the batch, so the peer can never frame a
// message whose descriptors have not arrived. Inbound descriptors
// queue in arrival order and are drained by message decoding through
// the [wire.FDSource] contract, strictly left to right per message.
//
// Sockets come from [Dial] (explicit path), [DialEnv] (the standard
// WAYLAND_SOCKET / XDG_RUNTIME_DIR + WAYLAND_DISPLAY environment
// protocol), or [New] (adopting an already-connected descriptor, as
// in socketpair-based tests).
//
// The transport frames and decodes but does not interpret: object
// lifetimes, dispatch, and concurrency modes live in the client
// package above it.
package transport
