// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol carries the interface descriptors the engine
// dispatches against.
//
// The engine itself depends only on the descriptor shape
// (wire.Interface and friends); this package supplies the content.
// [Display], [Registry], and [Callback] are the built-in core
// interfaces every connection needs: they bootstrap object id 1,
// the global registry, and the roundtrip synchronization callback.
// Their opcode constants ([DisplaySync], [RegistryEventGlobal], ...)
// are the stable names the client package and tools dispatch on.
//
// Further protocols load from YAML descriptor documents via [Load],
// [LoadFile], and [LoadDir]. A document lists interfaces with their
// requests and events in opcode order; argument types use the wire
// vocabulary (int, uint, fixed, string, array, object, new_id, fd)
// with allow_null marking nullable objects and strings and an
// interface field typing object and new_id arguments. References
// resolve across the whole loaded set plus the built-ins, so
// extension protocols can point at wl_callback or at interfaces from
// a sibling document. Code generators that emit typed wrappers are
// out of scope; descriptors are the boundary they and this engine
// share.
package protocol
