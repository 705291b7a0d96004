// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the client side of a Wayland connection:
// the object identity table, request sending, event dispatch, and the
// registry of advertised globals.
//
// A [Conn] wraps one Unix socket to a compositor. [Connect] discovers
// the socket through the standard environment variables; [New] adopts
// an already-connected socket. Requests go out through
// [Conn.SendRequest] and [Conn.SendConstructor], buffered in the
// transport's out-ring until [Conn.Flush]. Events come in through
// [Conn.Dispatch], which decodes buffered messages in arrival order
// and invokes the handler registered with [Conn.OnEvent] for each
// addressed object.
//
// How operations behave at the socket boundary is set by
// [Options.Mode]: [Blocking] parks the calling thread in poll(2),
// [NonBlocking] returns [ErrWouldBlock] immediately, and
// [Cooperative] suspends only the calling goroutine. [Conn.Roundtrip]
// always waits, whatever the mode.
//
// A Conn is not safe for concurrent use. All methods must be called
// from one goroutine at a time; callers that want to share a
// connection provide their own serialization. Event handlers run
// synchronously inside Dispatch and may send requests, but must not
// re-enter the dispatch loop.
//
// Errors split into two classes. Validation failures (bad arguments,
// stale object handles, a full out-ring in non-blocking mode) are
// returned and leave the connection usable. Wire-level failures
// (malformed bytes, protocol errors from the compositor, lost file
// descriptors, a closed peer) are terminal: the connection closes and
// every subsequent operation returns the original cause.
package client
