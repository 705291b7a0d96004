// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
)

// Arg is one message argument. The set of implementations is closed:
// Int, Uint, Fixed, Object, NewID, AnyNewID, String, NullString,
// Array, and FD. A null object is Object(0) and a null string is
// NullString{}; both are legal only where the signature declares the
// position nullable.
type Arg interface {
	// size returns the encoded length in bytes, padding included.
	// File descriptors encode to zero bytes.
	size() int

	// append appends the wire encoding to dst.
	append(dst []byte) []byte
}

// Int is a signed 32-bit integer argument.
type Int int32

// Uint is an unsigned 32-bit integer argument.
type Uint uint32

// Object is an object identifier argument. The zero value encodes a
// null reference.
type Object ObjectID

// NewID carries the identifier of an object being created by this
// message. In requests the connection allocates it; in events it
// names a server-created object.
type NewID ObjectID

// AnyNewID is the registry-bind form of object creation, where the
// constructed interface is not fixed by the signature and instead
// travels on the wire alongside the identifier.
type AnyNewID struct {
	Interface string
	Version   uint32
	ID        ObjectID
}

// String is a non-null text argument. The terminating NUL is added on
// the wire; the Go value never contains one.
type String string

// NullString is the null string argument, distinct from String("").
type NullString struct{}

// Array is a length-prefixed opaque byte blob argument.
type Array []byte

// FD is a file descriptor argument. It contributes no stream bytes;
// the transport carries the descriptor as ancillary data. The File
// stays owned by whoever created it: the engine never closes files it
// did not open.
type FD struct {
	File *os.File
}

func (Int) size() int        { return 4 }
func (Uint) size() int       { return 4 }
func (Fixed) size() int      { return 4 }
func (Object) size() int     { return 4 }
func (NewID) size() int      { return 4 }
func (NullString) size() int { return 4 }
func (FD) size() int         { return 0 }

func (a AnyNewID) size() int {
	return 4 + padded(len(a.Interface)+1) + 8
}

func (s String) size() int {
	return 4 + padded(len(s)+1)
}

func (a Array) size() int {
	return 4 + padded(len(a))
}

func appendWord(dst []byte, v uint32) []byte {
	return binary.NativeEndian.AppendUint32(dst, v)
}

// appendPadding extends dst with zero bytes from length n up to the
// next word boundary.
func appendPadding(dst []byte, n int) []byte {
	for ; n%wordSize != 0; n++ {
		dst = append(dst, 0)
	}
	return dst
}

func (v Int) append(dst []byte) []byte    { return appendWord(dst, uint32(v)) }
func (v Uint) append(dst []byte) []byte   { return appendWord(dst, uint32(v)) }
func (v Fixed) append(dst []byte) []byte  { return appendWord(dst, uint32(v)) }
func (v Object) append(dst []byte) []byte { return appendWord(dst, uint32(v)) }
func (v NewID) append(dst []byte) []byte  { return appendWord(dst, uint32(v)) }

func (v AnyNewID) append(dst []byte) []byte {
	dst = String(v.Interface).append(dst)
	dst = appendWord(dst, v.Version)
	return appendWord(dst, uint32(v.ID))
}

func (s String) append(dst []byte) []byte {
	dst = appendWord(dst, uint32(len(s)+1))
	dst = append(dst, s...)
	dst = append(dst, 0)
	return appendPadding(dst, len(s)+1)
}

func (NullString) append(dst []byte) []byte {
	return appendWord(dst, 0)
}

func (a Array) append(dst []byte) []byte {
	dst = appendWord(dst, uint32(len(a)))
	dst = append(dst, a...)
	return appendPadding(dst, len(a))
}

func (FD) append(dst []byte) []byte { return dst }

// String renderings are the debug-trace forms: compact, one token per
// argument, close to the classic WAYLAND_DEBUG notation.

func (v Int) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Uint) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v NewID) String() string { return "new id " + strconv.FormatUint(uint64(v), 10) }

func (v Object) String() string {
	if v == 0 {
		return "nil"
	}
	return "object " + strconv.FormatUint(uint64(v), 10)
}

func (v AnyNewID) String() string {
	return fmt.Sprintf("new id %s@%d v%d", v.Interface, v.ID, v.Version)
}

func (s String) String() string   { return strconv.Quote(string(s)) }
func (NullString) String() string { return "nil" }

func (a Array) String() string {
	return fmt.Sprintf("array[%d]", len(a))
}

func (v FD) String() string {
	if v.File == nil {
		return "fd ?"
	}
	return "fd " + strconv.FormatUint(uint64(v.File.Fd()), 10)
}
