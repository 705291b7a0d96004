// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ring

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteThenRead(t *testing.T) {
	t.Parallel()
	buffer := New(16)

	if err := buffer.WriteBytes([]byte("hello")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if buffer.Len() != 5 || buffer.Free() != 11 {
		t.Errorf("Len/Free: got %d/%d, want 5/11", buffer.Len(), buffer.Free())
	}

	got := make([]byte, 5)
	if err := buffer.ReadBytes(got); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("ReadBytes: got %q, want %q", got, "hello")
	}
	if buffer.Len() != 0 {
		t.Errorf("Len after read: got %d, want 0", buffer.Len())
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	t.Parallel()
	buffer := New(16)
	buffer.WriteBytes([]byte("abcdef"))

	peeked := make([]byte, 4)
	if err := buffer.PeekBytes(peeked); err != nil {
		t.Fatalf("PeekBytes: %v", err)
	}
	if !bytes.Equal(peeked, []byte("abcd")) {
		t.Errorf("PeekBytes: got %q, want %q", peeked, "abcd")
	}
	if buffer.Len() != 6 {
		t.Errorf("Len after peek: got %d, want 6", buffer.Len())
	}

	// A second peek sees the same bytes.
	if err := buffer.PeekBytes(peeked); err != nil {
		t.Fatalf("second PeekBytes: %v", err)
	}
	if !bytes.Equal(peeked, []byte("abcd")) {
		t.Errorf("second PeekBytes: got %q, want %q", peeked, "abcd")
	}
}

func TestWriteRefusedWhenFull(t *testing.T) {
	t.Parallel()
	buffer := New(8)
	buffer.WriteBytes([]byte("123456"))

	err := buffer.WriteBytes([]byte("abc"))
	if !errors.Is(err, ErrFull) {
		t.Fatalf("WriteBytes overflow: got %v, want ErrFull", err)
	}

	// The refused write must not have written anything.
	got := make([]byte, 6)
	if err := buffer.ReadBytes(got); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte("123456")) {
		t.Errorf("contents after refused write: got %q, want %q", got, "123456")
	}
}

func TestReadShort(t *testing.T) {
	t.Parallel()
	buffer := New(8)
	buffer.WriteBytes([]byte("ab"))

	got := make([]byte, 4)
	if err := buffer.ReadBytes(got); !errors.Is(err, ErrShort) {
		t.Fatalf("ReadBytes short: got %v, want ErrShort", err)
	}
	if buffer.Len() != 2 {
		t.Errorf("Len after short read: got %d, want 2", buffer.Len())
	}
}

func TestContentSurvivesWrap(t *testing.T) {
	t.Parallel()
	buffer := New(8)

	// Advance the head (leaving one byte buffered so the cursor does
	// not reset) so the next write wraps around the end.
	buffer.WriteBytes([]byte("0000"))
	buffer.Consume(3)
	if err := buffer.WriteBytes([]byte("abcdefg")); err != nil {
		t.Fatalf("wrapping WriteBytes: %v", err)
	}

	got := make([]byte, 8)
	if err := buffer.ReadBytes(got); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte("0abcdefg")) {
		t.Errorf("wrapped contents: got %q, want %q", got, "0abcdefg")
	}
}

func TestReadSlicesSpanWrap(t *testing.T) {
	t.Parallel()
	buffer := New(8)
	buffer.WriteBytes([]byte("0123456"))
	buffer.Consume(6)
	buffer.WriteBytes([]byte("abcde"))

	first, second := buffer.ReadSlices()
	joined := append(append([]byte{}, first...), second...)
	if !bytes.Equal(joined, []byte("6abcde")) {
		t.Errorf("ReadSlices: got %q, want %q", joined, "6abcde")
	}
	if second == nil {
		t.Error("expected the occupied region to wrap into two segments")
	}
}

func TestFreeSlicesAndCommit(t *testing.T) {
	t.Parallel()
	buffer := New(8)
	buffer.WriteBytes([]byte("abcd"))
	buffer.Consume(2)

	// Occupied region is "cd" at positions 2-3; free space wraps:
	// positions 4-7 then 0-1.
	first, second := buffer.FreeSlices()
	if len(first)+len(second) != buffer.Free() {
		t.Fatalf("FreeSlices total: got %d, want %d", len(first)+len(second), buffer.Free())
	}
	if len(second) == 0 {
		t.Fatal("expected the free region to wrap into two segments")
	}

	// Fill the free region the way a vectored socket read would.
	filler := []byte("123456")
	n := copy(first, filler)
	copy(second, filler[n:])
	buffer.CommitWrite(len(filler))

	got := make([]byte, 8)
	if err := buffer.ReadBytes(got); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte("cd123456")) {
		t.Errorf("contents after commit: got %q, want %q", got, "cd123456")
	}
}

func TestPartialConsumeRetry(t *testing.T) {
	t.Parallel()
	buffer := New(16)
	buffer.WriteBytes([]byte("messagebody"))

	// A consumer that only managed part of its work consumes only
	// that part; the remainder is still readable.
	first, _ := buffer.ReadSlices()
	if len(first) < 4 {
		t.Fatalf("ReadSlices first segment: got %d bytes, want at least 4", len(first))
	}
	buffer.Consume(4)

	got := make([]byte, 7)
	if err := buffer.ReadBytes(got); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte("agebody")) {
		t.Errorf("remainder: got %q, want %q", got, "agebody")
	}
}

func TestOccupiedCountStaysInRange(t *testing.T) {
	t.Parallel()
	buffer := New(32)

	// Interleave writes and reads of varying sizes, checking the
	// occupied count and content integrity across many wraps.
	var expect []byte
	next := byte(0)
	for round := 0; round < 200; round++ {
		chunk := make([]byte, (round*7)%13+1)
		for i := range chunk {
			chunk[i] = next
			next++
		}
		if len(chunk) <= buffer.Free() {
			if err := buffer.WriteBytes(chunk); err != nil {
				t.Fatalf("round %d: WriteBytes: %v", round, err)
			}
			expect = append(expect, chunk...)
		}

		readLength := (round * 5) % 9
		if readLength > buffer.Len() {
			readLength = buffer.Len()
		}
		if readLength > 0 {
			got := make([]byte, readLength)
			if err := buffer.ReadBytes(got); err != nil {
				t.Fatalf("round %d: ReadBytes: %v", round, err)
			}
			if !bytes.Equal(got, expect[:readLength]) {
				t.Fatalf("round %d: got %q, want %q", round, got, expect[:readLength])
			}
			expect = expect[readLength:]
		}

		if buffer.Len() < 0 || buffer.Len() > buffer.Cap() {
			t.Fatalf("round %d: occupied count %d outside [0, %d]", round, buffer.Len(), buffer.Cap())
		}
		if buffer.Len() != len(expect) {
			t.Fatalf("round %d: Len %d does not match expected %d", round, buffer.Len(), len(expect))
		}
	}
}
