// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"os"
)

// FDSource supplies the file descriptors that arrived alongside the
// byte stream. The decoder pops one per KindFD signature position, in
// order; an empty source where the signature demands a descriptor is
// a framing error, never a default value.
type FDSource interface {
	PopFD() (*os.File, bool)
}

// DecodeBody decodes a message body (everything after the header)
// against the given descriptor. The body must be exactly the declared
// length; a signature that consumes fewer or more bytes than the body
// holds is a framing error. String and array contents are copied out
// of body, so the caller may reuse the slice immediately.
func DecodeBody(desc *MessageDesc, body []byte, fds FDSource) ([]Arg, error) {
	reader := bodyReader{buf: body}
	args := make([]Arg, 0, len(desc.Signature))

	for position := range desc.Signature {
		spec := &desc.Signature[position]
		arg, err := reader.decodeArg(spec, fds)
		if err != nil {
			return nil, framingErrorf("%s argument %d (%s): %v", desc.Name, position, spec.Name, err)
		}
		args = append(args, arg)
	}

	if reader.off != len(body) {
		return nil, framingErrorf("%s: %d trailing bytes after the declared arguments", desc.Name, len(body)-reader.off)
	}
	return args, nil
}

type bodyReader struct {
	buf []byte
	off int
}

func (r *bodyReader) word() (uint32, error) {
	if r.off+wordSize > len(r.buf) {
		return 0, errTruncated
	}
	value := binary.NativeEndian.Uint32(r.buf[r.off:])
	r.off += wordSize
	return value, nil
}

// block returns the next n payload bytes and skips the padding that
// rounds n up to a word boundary.
func (r *bodyReader) block(n int) ([]byte, error) {
	total := padded(n)
	if n < 0 || r.off+total > len(r.buf) {
		return nil, errTruncated
	}
	payload := r.buf[r.off : r.off+n]
	r.off += total
	return payload, nil
}

func (r *bodyReader) decodeArg(spec *ArgSpec, fds FDSource) (Arg, error) {
	switch spec.Kind {
	case KindInt:
		word, err := r.word()
		return Int(word), err

	case KindUint:
		word, err := r.word()
		return Uint(word), err

	case KindFixed:
		word, err := r.word()
		return Fixed(word), err

	case KindObject, KindOptObject:
		word, err := r.word()
		if err != nil {
			return nil, err
		}
		if word == 0 && spec.Kind == KindObject {
			return nil, errUnexpectedNull
		}
		return Object(word), nil

	case KindNewID:
		word, err := r.word()
		if err != nil {
			return nil, err
		}
		if word == 0 {
			return nil, errUnexpectedNull
		}
		return NewID(word), nil

	case KindAnyNewID:
		name, err := r.decodeString(false)
		if err != nil {
			return nil, err
		}
		version, err := r.word()
		if err != nil {
			return nil, err
		}
		id, err := r.word()
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, errUnexpectedNull
		}
		text, _ := name.(String)
		return AnyNewID{Interface: string(text), Version: version, ID: ObjectID(id)}, nil

	case KindString:
		return r.decodeString(false)

	case KindOptString:
		return r.decodeString(true)

	case KindArray:
		length, err := r.word()
		if err != nil {
			return nil, err
		}
		payload, err := r.block(int(length))
		if err != nil {
			return nil, err
		}
		return Array(bytes.Clone(payload)), nil

	case KindFD:
		file, ok := fds.PopFD()
		if !ok {
			return nil, errFDUnderrun
		}
		return FD{File: file}, nil

	default:
		return nil, errUnknownKind
	}
}

// decodeString decodes a length-prefixed, NUL-terminated, padded
// string. The prefix counts the NUL; a zero prefix is the null
// string, legal only when nullable is set.
func (r *bodyReader) decodeString(nullable bool) (Arg, error) {
	length, err := r.word()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		if !nullable {
			return nil, errUnexpectedNull
		}
		return NullString{}, nil
	}
	payload, err := r.block(int(length))
	if err != nil {
		return nil, err
	}
	if payload[len(payload)-1] != 0 {
		return nil, errMissingNUL
	}
	text := payload[:len(payload)-1]
	if bytes.IndexByte(text, 0) >= 0 {
		return nil, errInteriorNUL
	}
	return String(text), nil
}

// Decode failure causes, wrapped into FramingError with the message
// and argument position by DecodeBody.
var (
	errTruncated      = &FramingError{Detail: "body truncated"}
	errUnexpectedNull = &FramingError{Detail: "unexpected null"}
	errMissingNUL     = &FramingError{Detail: "string missing NUL terminator"}
	errInteriorNUL    = &FramingError{Detail: "string contains interior NUL"}
	errFDUnderrun     = &FramingError{Detail: "no file descriptor buffered"}
	errUnknownKind    = &FramingError{Detail: "unknown signature kind"}
)
