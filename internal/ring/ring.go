// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ring provides the fixed-capacity circular byte buffer that
// backs the connection's inbound and outbound streams. The buffer
// never grows and never overwrites: a write that does not fit is
// refused, which is the backpressure signal the transport turns into
// its would-block handling.
//
// The read cursor only moves on explicit Consume, so a consumer that
// cannot complete (a partial socket write, a message whose body has
// not fully arrived) retries later without losing data. FreeSlices
// and ReadSlices expose the wrapped storage as at most two segments
// for vectored socket I/O without copying.
package ring

import "errors"

// ErrFull is returned by WriteBytes when the buffer lacks free space
// for the entire write. Nothing is written in that case.
var ErrFull = errors.New("ring: buffer full")

// ErrShort is returned by PeekBytes and ReadBytes when fewer bytes
// are buffered than requested. Nothing is consumed in that case.
var ErrShort = errors.New("ring: not enough buffered data")

// Buffer is a fixed-capacity circular byte buffer. The zero value is
// unusable; construct with New. Buffer is not safe for concurrent
// use: the connection is its sole owner.
type Buffer struct {
	data []byte
	// head is the read position (0 to cap-1). The occupied region
	// spans size bytes starting at head, wrapping at capacity.
	head int
	size int
}

// New creates a buffer with the given capacity in bytes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the number of occupied bytes.
func (b *Buffer) Len() int { return b.size }

// Free returns the number of writable bytes.
func (b *Buffer) Free() int { return len(b.data) - b.size }

// WriteBytes copies p into free space, wrapping at capacity. If p
// does not fit entirely, nothing is written and ErrFull is returned.
func (b *Buffer) WriteBytes(p []byte) error {
	if len(p) > b.Free() {
		return ErrFull
	}
	start := b.writePos()
	first := min(len(p), len(b.data)-start)
	copy(b.data[start:], p[:first])
	copy(b.data, p[first:])
	b.size += len(p)
	return nil
}

// PeekBytes copies the next len(p) occupied bytes into p without
// advancing the read cursor. Returns ErrShort if fewer bytes are
// buffered.
func (b *Buffer) PeekBytes(p []byte) error {
	if len(p) > b.size {
		return ErrShort
	}
	first := min(len(p), len(b.data)-b.head)
	copy(p, b.data[b.head:b.head+first])
	copy(p[first:], b.data)
	return nil
}

// ReadBytes copies the next len(p) occupied bytes into p and consumes
// them. Returns ErrShort (consuming nothing) if fewer bytes are
// buffered.
func (b *Buffer) ReadBytes(p []byte) error {
	if err := b.PeekBytes(p); err != nil {
		return err
	}
	b.Consume(len(p))
	return nil
}

// Consume advances the read cursor by n bytes, releasing them as free
// space. Panics if n exceeds the occupied count: callers consume only
// what a prior peek or slice view has shown to exist.
func (b *Buffer) Consume(n int) {
	if n < 0 || n > b.size {
		panic("ring: consume beyond occupied region")
	}
	b.head = (b.head + n) % len(b.data)
	b.size -= n
	if b.size == 0 {
		// Reset to the start so subsequent fills are contiguous.
		b.head = 0
	}
}

// CommitWrite marks n bytes of free space, starting at the write
// position, as occupied. Used after filling space obtained from
// FreeSlices. Panics if n exceeds the free count.
func (b *Buffer) CommitWrite(n int) {
	if n < 0 || n > b.Free() {
		panic("ring: commit beyond free region")
	}
	b.size += n
}

// ReadSlices returns the occupied region as up to two segments in
// read order. The segments alias the buffer: they are valid until the
// next mutating call. An empty buffer yields two nil slices.
func (b *Buffer) ReadSlices() ([]byte, []byte) {
	if b.size == 0 {
		return nil, nil
	}
	end := b.head + b.size
	if end <= len(b.data) {
		return b.data[b.head:end], nil
	}
	return b.data[b.head:], b.data[:end-len(b.data)]
}

// FreeSlices returns the free region as up to two segments in write
// order, for vectored reads from the socket followed by CommitWrite.
// The segments alias the buffer: they are valid until the next
// mutating call. A full buffer yields two nil slices.
func (b *Buffer) FreeSlices() ([]byte, []byte) {
	free := b.Free()
	if free == 0 {
		return nil, nil
	}
	start := b.writePos()
	if start+free <= len(b.data) {
		return b.data[start : start+free], nil
	}
	return b.data[start:], b.data[:b.head]
}

// writePos returns the position of the next byte to write.
func (b *Buffer) writePos() int {
	return (b.head + b.size) % len(b.data)
}
