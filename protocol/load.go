// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/wayline/wire"
)

// document is the YAML shape of a protocol description file.
type document struct {
	Interfaces []interfaceDoc `yaml:"interfaces"`
}

type interfaceDoc struct {
	Name     string       `yaml:"name"`
	Version  uint32       `yaml:"version"`
	Requests []messageDoc `yaml:"requests"`
	Events   []messageDoc `yaml:"events"`
}

type messageDoc struct {
	Name       string   `yaml:"name"`
	Destructor bool     `yaml:"destructor"`
	Args       []argDoc `yaml:"args"`
}

type argDoc struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Interface string `yaml:"interface"`
	AllowNull bool   `yaml:"allow_null"`
}

// Load parses one protocol description document. Interface references
// resolve against the document itself plus the built-in core
// interfaces.
func Load(r io.Reader) ([]*wire.Interface, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: read: %w", err)
	}
	docs, err := parse(data)
	if err != nil {
		return nil, err
	}
	return build(docs)
}

// LoadFile parses the protocol description at path.
func LoadFile(path string) ([]*wire.Interface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	docs, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: %s: %w", path, err)
	}
	interfaces, err := build(docs)
	if err != nil {
		return nil, fmt.Errorf("protocol: %s: %w", path, err)
	}
	return interfaces, nil
}

// LoadDir parses every .yaml and .yml file in dir as one merged
// document set, so interfaces may reference across files. Files load
// in name order.
func LoadDir(dir string) ([]*wire.Interface, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	var merged []interfaceDoc
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("protocol: %w", err)
		}
		docs, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", path, err)
		}
		merged = append(merged, docs...)
	}
	return build(merged)
}

func parse(data []byte) ([]interfaceDoc, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return doc.Interfaces, nil
}

// build turns parsed interface documents into resolved descriptors.
// Shells are created first so signatures can reference interfaces
// regardless of declaration order. Validation problems accumulate;
// nothing is returned if any were found.
func build(docs []interfaceDoc) ([]*wire.Interface, error) {
	byName := make(map[string]*wire.Interface, len(docs)+3)
	for _, core := range Core() {
		byName[core.Name] = core
	}

	var errs []error
	type pending struct {
		doc   interfaceDoc
		iface *wire.Interface
	}
	resolved := make([]pending, 0, len(docs))
	for _, doc := range docs {
		if doc.Name == "" {
			errs = append(errs, errors.New("interface with empty name"))
			continue
		}
		if doc.Version == 0 {
			errs = append(errs, fmt.Errorf("interface %s: version must be at least 1", doc.Name))
			continue
		}
		if _, exists := byName[doc.Name]; exists {
			errs = append(errs, fmt.Errorf("duplicate interface %s", doc.Name))
			continue
		}
		iface := &wire.Interface{Name: doc.Name, Version: doc.Version}
		byName[doc.Name] = iface
		resolved = append(resolved, pending{doc: doc, iface: iface})
	}

	for _, p := range resolved {
		p.iface.Requests = buildMessages(p.doc.Name, p.doc.Requests, byName, &errs)
		p.iface.Events = buildMessages(p.doc.Name, p.doc.Events, byName, &errs)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	interfaces := make([]*wire.Interface, len(resolved))
	for i, p := range resolved {
		interfaces[i] = p.iface
	}
	return interfaces, nil
}

func buildMessages(owner string, docs []messageDoc, byName map[string]*wire.Interface, errs *[]error) []wire.MessageDesc {
	if len(docs) == 0 {
		return nil
	}
	out := make([]wire.MessageDesc, 0, len(docs))
	for _, msg := range docs {
		if msg.Name == "" {
			*errs = append(*errs, fmt.Errorf("interface %s: message with empty name", owner))
			continue
		}
		desc := wire.MessageDesc{Name: msg.Name, Destructor: msg.Destructor}
		for _, arg := range msg.Args {
			spec, err := buildArg(arg, byName)
			if err != nil {
				*errs = append(*errs, fmt.Errorf("%s.%s: argument %q: %w", owner, msg.Name, arg.Name, err))
				continue
			}
			desc.Signature = append(desc.Signature, spec)
		}
		out = append(out, desc)
	}
	return out
}

func buildArg(arg argDoc, byName map[string]*wire.Interface) (wire.ArgSpec, error) {
	spec := wire.ArgSpec{Name: arg.Name}
	switch arg.Type {
	case "int":
		spec.Kind = wire.KindInt
	case "uint":
		spec.Kind = wire.KindUint
	case "fixed":
		spec.Kind = wire.KindFixed
	case "string":
		spec.Kind = wire.KindString
		if arg.AllowNull {
			spec.Kind = wire.KindOptString
		}
	case "array":
		spec.Kind = wire.KindArray
	case "fd":
		spec.Kind = wire.KindFD
	case "object":
		spec.Kind = wire.KindObject
		if arg.AllowNull {
			spec.Kind = wire.KindOptObject
		}
	case "new_id":
		spec.Kind = wire.KindNewID
		if arg.Interface == "" {
			// The registry-bind form: interface and version travel
			// on the wire instead of the schema.
			spec.Kind = wire.KindAnyNewID
		}
	default:
		return spec, fmt.Errorf("unknown argument type %q", arg.Type)
	}

	if arg.AllowNull && arg.Type != "object" && arg.Type != "string" {
		return spec, fmt.Errorf("allow_null is not valid for type %q", arg.Type)
	}
	if arg.Interface != "" {
		if arg.Type != "object" && arg.Type != "new_id" {
			return spec, fmt.Errorf("interface reference is not valid for type %q", arg.Type)
		}
		ref, ok := byName[arg.Interface]
		if !ok {
			return spec, fmt.Errorf("unknown interface %q", arg.Interface)
		}
		spec.Interface = ref
	}
	return spec, nil
}
