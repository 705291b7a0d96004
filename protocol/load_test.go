// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/wayline/wire"
)

func interfacesByName(t *testing.T, interfaces []*wire.Interface) map[string]*wire.Interface {
	t.Helper()
	byName := make(map[string]*wire.Interface, len(interfaces))
	for _, iface := range interfaces {
		byName[iface.Name] = iface
	}
	return byName
}

func TestLoadTestdataCoversEveryKind(t *testing.T) {
	t.Parallel()
	interfaces, err := LoadFile(filepath.Join("testdata", "probe.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	byName := interfacesByName(t, interfaces)

	compositor := byName["test_compositor"]
	if compositor == nil || compositor.Version != 4 {
		t.Fatalf("test_compositor: %+v", compositor)
	}

	createSurface := compositor.RequestDesc(0)
	if createSurface.Signature[0].Kind != wire.KindNewID {
		t.Errorf("create_surface id kind: %v", createSurface.Signature[0].Kind)
	}
	if createSurface.Signature[0].Interface != byName["test_surface"] {
		t.Error("create_surface id does not resolve to test_surface")
	}

	bindProbe := compositor.RequestDesc(1)
	if bindProbe.Signature[0].Kind != wire.KindAnyNewID {
		t.Errorf("bind_probe id kind: %v", bindProbe.Signature[0].Kind)
	}
	if compositor.RequestDesc(2).Signature[0].Kind != wire.KindFixed {
		t.Error("set_scale scale is not fixed")
	}

	surface := byName["test_surface"]
	attach := surface.RequestDesc(0)
	if attach.Signature[0].Kind != wire.KindOptObject || attach.Signature[0].Interface != byName["test_buffer"] {
		t.Errorf("attach buffer: %+v", attach.Signature[0])
	}
	if attach.Signature[1].Kind != wire.KindInt {
		t.Errorf("attach x: %+v", attach.Signature[1])
	}
	if surface.RequestDesc(1).Signature[0].Kind != wire.KindOptString {
		t.Error("set_title title is not a nullable string")
	}
	if commit := surface.RequestDesc(2); len(commit.Signature) != 0 {
		t.Errorf("commit has %d arguments", len(commit.Signature))
	}
	if destroy := surface.RequestDesc(3); !destroy.Destructor {
		t.Error("destroy is not a destructor")
	}
	if surface.EventDesc(1).Signature[0].Kind != wire.KindArray {
		t.Error("frame_times times is not an array")
	}

	buffer := byName["test_buffer"]
	if buffer.RequestDesc(0).Signature[0].Kind != wire.KindFD {
		t.Error("import file is not an fd")
	}

	// A typed new_id event argument referencing a built-in resolves
	// to the same descriptor the engine dispatches with.
	output := byName["test_output"]
	frameDone := output.EventDesc(0)
	if frameDone.Signature[0].Kind != wire.KindNewID || frameDone.Signature[0].Interface != Callback {
		t.Errorf("frame_done callback: %+v", frameDone.Signature[0])
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "duplicate_interface",
			doc: `interfaces:
  - {name: test_thing, version: 1}
  - {name: test_thing, version: 2}`,
			wantErr: "duplicate interface test_thing",
		},
		{
			name: "shadows_builtin",
			doc: `interfaces:
  - {name: wl_display, version: 1}`,
			wantErr: "duplicate interface wl_display",
		},
		{
			name: "unknown_type",
			doc: `interfaces:
  - name: test_thing
    version: 1
    requests:
      - name: poke
        args:
          - {name: v, type: float}`,
			wantErr: `unknown argument type "float"`,
		},
		{
			name: "unresolved_reference",
			doc: `interfaces:
  - name: test_thing
    version: 1
    requests:
      - name: make
        args:
          - {name: id, type: new_id, interface: test_missing}`,
			wantErr: `unknown interface "test_missing"`,
		},
		{
			name: "allow_null_on_int",
			doc: `interfaces:
  - name: test_thing
    version: 1
    requests:
      - name: poke
        args:
          - {name: v, type: int, allow_null: true}`,
			wantErr: "allow_null is not valid",
		},
		{
			name: "interface_on_string",
			doc: `interfaces:
  - name: test_thing
    version: 1
    requests:
      - name: poke
        args:
          - {name: v, type: string, interface: wl_display}`,
			wantErr: "interface reference is not valid",
		},
		{
			name: "zero_version",
			doc: `interfaces:
  - {name: test_thing, version: 0}`,
			wantErr: "version must be at least 1",
		},
		{
			name:    "not_yaml",
			doc:     "interfaces: [",
			wantErr: "parse",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(strings.NewReader(test.doc))
			if err == nil {
				t.Fatal("Load accepted an invalid document")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestLoadDirResolvesAcrossFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	producer := `interfaces:
  - name: test_pool
    version: 1
    requests:
      - name: create_slot
        args:
          - {name: id, type: new_id, interface: test_slot}`
	consumer := `interfaces:
  - name: test_slot
    version: 1
    requests:
      - name: destroy
        destructor: true`
	if err := os.WriteFile(filepath.Join(dir, "a-pool.yaml"), []byte(producer), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b-slot.yml"), []byte(consumer), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a protocol"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	interfaces, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(interfaces) != 2 {
		t.Fatalf("loaded %d interfaces, want 2", len(interfaces))
	}
	byName := interfacesByName(t, interfaces)
	ref := byName["test_pool"].RequestDesc(0).Signature[0].Interface
	if ref != byName["test_slot"] {
		t.Error("cross-file reference did not resolve to the loaded descriptor")
	}
}

func TestCoreDescriptors(t *testing.T) {
	t.Parallel()

	sync := Display.RequestDesc(DisplaySync)
	if sync == nil || sync.Signature[0].Kind != wire.KindNewID || sync.Signature[0].Interface != Callback {
		t.Fatalf("wl_display.sync: %+v", sync)
	}
	getRegistry := Display.RequestDesc(DisplayGetRegistry)
	if getRegistry.Signature[0].Interface != Registry {
		t.Error("wl_display.get_registry does not create a wl_registry")
	}

	errorEvent := Display.EventDesc(DisplayEventError)
	wantKinds := []wire.ArgKind{wire.KindObject, wire.KindUint, wire.KindString}
	for i, spec := range errorEvent.Signature {
		if spec.Kind != wantKinds[i] {
			t.Errorf("wl_display.error argument %d: %v, want %v", i, spec.Kind, wantKinds[i])
		}
	}

	bind := Registry.RequestDesc(RegistryBind)
	if bind.Signature[1].Kind != wire.KindAnyNewID {
		t.Error("wl_registry.bind id is not the untyped new_id form")
	}

	done := Callback.EventDesc(CallbackEventDone)
	if !done.Destructor {
		t.Error("wl_callback.done is not a destructor")
	}
	if Display.EventDesc(2) != nil {
		t.Error("wl_display claims an event opcode 2")
	}
}
