// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "github.com/bureau-foundation/wayline/wire"

// Opcodes of the built-in core interfaces, in declaration order.
const (
	DisplaySync        uint16 = 0
	DisplayGetRegistry uint16 = 1

	DisplayEventError    uint16 = 0
	DisplayEventDeleteID uint16 = 1

	RegistryBind uint16 = 0

	RegistryEventGlobal       uint16 = 0
	RegistryEventGlobalRemove uint16 = 1

	CallbackEventDone uint16 = 0
)

// Callback is wl_callback: a one-shot completion notification. Its
// done event is a destructor, so the object dies as the event
// dispatches.
var Callback = &wire.Interface{
	Name:    "wl_callback",
	Version: 1,
	Events: []wire.MessageDesc{
		{Name: "done", Destructor: true, Signature: []wire.ArgSpec{
			{Name: "callback_data", Kind: wire.KindUint},
		}},
	},
}

// Registry is wl_registry: the compositor announces every global
// through it, and bind creates a protocol object for one. The bind
// request uses the untyped new_id form, so the interface name and
// version travel on the wire with the id.
var Registry = &wire.Interface{
	Name:    "wl_registry",
	Version: 1,
	Requests: []wire.MessageDesc{
		{Name: "bind", Signature: []wire.ArgSpec{
			{Name: "name", Kind: wire.KindUint},
			{Name: "id", Kind: wire.KindAnyNewID},
		}},
	},
	Events: []wire.MessageDesc{
		{Name: "global", Signature: []wire.ArgSpec{
			{Name: "name", Kind: wire.KindUint},
			{Name: "interface", Kind: wire.KindString},
			{Name: "version", Kind: wire.KindUint},
		}},
		{Name: "global_remove", Signature: []wire.ArgSpec{
			{Name: "name", Kind: wire.KindUint},
		}},
	},
}

// Display is wl_display, the root object behind id 1. Its error
// event is the protocol's fatal diagnostic channel and delete_id
// acknowledges object destruction so ids can be reused.
var Display = &wire.Interface{
	Name:    "wl_display",
	Version: 1,
	Requests: []wire.MessageDesc{
		{Name: "sync", Signature: []wire.ArgSpec{
			{Name: "callback", Kind: wire.KindNewID, Interface: Callback},
		}},
		{Name: "get_registry", Signature: []wire.ArgSpec{
			{Name: "registry", Kind: wire.KindNewID, Interface: Registry},
		}},
	},
	Events: []wire.MessageDesc{
		{Name: "error", Signature: []wire.ArgSpec{
			{Name: "object_id", Kind: wire.KindObject},
			{Name: "code", Kind: wire.KindUint},
			{Name: "message", Kind: wire.KindString},
		}},
		{Name: "delete_id", Signature: []wire.ArgSpec{
			{Name: "id", Kind: wire.KindUint},
		}},
	},
}

// Core returns the built-in interfaces, the ones every connection
// speaks regardless of loaded extensions.
func Core() []*wire.Interface {
	return []*wire.Interface{Display, Registry, Callback}
}
