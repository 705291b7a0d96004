// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "os"

// Message is one complete request or event: the addressed object, the
// opcode within that object's interface, and the argument values in
// declared order.
type Message struct {
	Object ObjectID
	Opcode uint16
	Args   []Arg
}

// Size returns the total encoded length in bytes, header included.
// File descriptor arguments contribute nothing.
func (m *Message) Size() int {
	size := HeaderSize
	for _, arg := range m.Args {
		size += arg.size()
	}
	return size
}

// Append appends the complete wire encoding (header and arguments) to
// dst and returns the extended slice. The caller is responsible for
// having validated the arguments against the message's signature and
// for checking Size against MaxMessageSize.
func (m *Message) Append(dst []byte) []byte {
	size := m.Size()
	dst = appendWord(dst, uint32(m.Object))
	dst = appendWord(dst, uint32(size)<<16|uint32(m.Opcode))
	for _, arg := range m.Args {
		dst = arg.append(dst)
	}
	return dst
}

// Files returns the file descriptor arguments in declaration order,
// for handoff to the ancillary channel.
func (m *Message) Files() []*os.File {
	var files []*os.File
	for _, arg := range m.Args {
		if fd, ok := arg.(FD); ok {
			files = append(files, fd.File)
		}
	}
	return files
}
