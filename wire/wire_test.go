// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
)

// fileStack is a test FDSource backed by a slice.
type fileStack struct {
	files []*os.File
}

func (s *fileStack) PopFD() (*os.File, bool) {
	if len(s.files) == 0 {
		return nil, false
	}
	file := s.files[0]
	s.files = s.files[1:]
	return file, true
}

// encodeDecode runs one message through Append, ParseHeader, and
// DecodeBody with the given signature.
func encodeDecode(t *testing.T, signature []ArgSpec, args []Arg, fds *fileStack) []Arg {
	t.Helper()
	desc := &MessageDesc{Name: "probe", Signature: signature}
	if err := ValidateArgs(signature, args); err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}

	message := &Message{Object: 3, Opcode: 7, Args: args}
	encoded := message.Append(nil)
	if len(encoded) != message.Size() {
		t.Fatalf("encoded length %d does not match Size %d", len(encoded), message.Size())
	}

	header, err := ParseHeader(encoded)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if header.Object != 3 || header.Opcode != 7 || int(header.Size) != len(encoded) {
		t.Fatalf("header mismatch: %+v for %d encoded bytes", header, len(encoded))
	}

	if fds == nil {
		fds = &fileStack{}
	}
	decoded, err := DecodeBody(desc, encoded[HeaderSize:], fds)
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	return decoded
}

func TestArgumentRoundTrip(t *testing.T) {
	t.Parallel()

	sub := &Interface{Name: "probe_child", Version: 1}
	tests := []struct {
		name string
		spec ArgSpec
		arg  Arg
	}{
		{"int", ArgSpec{Name: "v", Kind: KindInt}, Int(-123456)},
		{"int_min", ArgSpec{Name: "v", Kind: KindInt}, Int(-1 << 31)},
		{"uint", ArgSpec{Name: "v", Kind: KindUint}, Uint(0xDEADBEEF)},
		{"fixed_zero", ArgSpec{Name: "v", Kind: KindFixed}, Fixed(0)},
		{"fixed_negative", ArgSpec{Name: "v", Kind: KindFixed}, FixedFromFloat(-1.5)},
		{"object", ArgSpec{Name: "v", Kind: KindObject}, Object(41)},
		{"opt_object_null", ArgSpec{Name: "v", Kind: KindOptObject}, Object(0)},
		{"opt_object_set", ArgSpec{Name: "v", Kind: KindOptObject}, Object(9)},
		{"new_id", ArgSpec{Name: "v", Kind: KindNewID, Interface: sub}, NewID(12)},
		{"any_new_id", ArgSpec{Name: "v", Kind: KindAnyNewID}, AnyNewID{Interface: "probe_child", Version: 4, ID: 12}},
		{"string", ArgSpec{Name: "v", Kind: KindString}, String("seat0")},
		{"string_empty", ArgSpec{Name: "v", Kind: KindString}, String("")},
		{"string_unpadded_length", ArgSpec{Name: "v", Kind: KindString}, String("abc")},
		{"opt_string_null", ArgSpec{Name: "v", Kind: KindOptString}, NullString{}},
		{"opt_string_empty", ArgSpec{Name: "v", Kind: KindOptString}, String("")},
		{"array_empty", ArgSpec{Name: "v", Kind: KindArray}, Array{}},
		{"array_odd_length", ArgSpec{Name: "v", Kind: KindArray}, Array{1, 2, 3, 4, 5}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			decoded := encodeDecode(t, []ArgSpec{test.spec}, []Arg{test.arg}, nil)
			if len(decoded) != 1 {
				t.Fatalf("decoded %d arguments, want 1", len(decoded))
			}
			if !reflect.DeepEqual(decoded[0], test.arg) {
				t.Errorf("round trip: got %#v, want %#v", decoded[0], test.arg)
			}
		})
	}
}

func TestMaxLengthArray(t *testing.T) {
	t.Parallel()

	// The largest array that still fits the message cap: header plus
	// length prefix leaves MaxMessageSize-12 payload bytes.
	payload := bytes.Repeat([]byte{0xA5}, MaxMessageSize-HeaderSize-4)
	signature := []ArgSpec{{Name: "data", Kind: KindArray}}
	decoded := encodeDecode(t, signature, []Arg{Array(payload)}, nil)
	if !bytes.Equal([]byte(decoded[0].(Array)), payload) {
		t.Error("maximum-length array did not survive the round trip")
	}
}

func TestFileDescriptorRoundTrip(t *testing.T) {
	t.Parallel()

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer readEnd.Close()
	defer writeEnd.Close()

	signature := []ArgSpec{
		{Name: "before", Kind: KindUint},
		{Name: "file", Kind: KindFD},
		{Name: "after", Kind: KindString},
	}
	args := []Arg{Uint(1), FD{File: writeEnd}, String("x")}

	message := &Message{Object: 2, Opcode: 0, Args: args}
	if files := message.Files(); len(files) != 1 || files[0] != writeEnd {
		t.Fatalf("Files: got %v", files)
	}

	// The descriptor contributes no stream bytes.
	wantSize := HeaderSize + 4 + (4 + 4)
	if message.Size() != wantSize {
		t.Fatalf("Size with fd: got %d, want %d", message.Size(), wantSize)
	}

	decoded := encodeDecode(t, signature, args, &fileStack{files: []*os.File{writeEnd}})
	fd, ok := decoded[1].(FD)
	if !ok || fd.File != writeEnd {
		t.Errorf("fd argument: got %#v, want the queued file", decoded[1])
	}
}

func TestEncodedSizeAlwaysWordAligned(t *testing.T) {
	t.Parallel()

	for length := 0; length < 9; length++ {
		args := []Arg{
			String(strings.Repeat("s", length)),
			Array(bytes.Repeat([]byte{1}, (length*3)%7)),
			Int(int32(length)),
			NullString{},
		}
		message := &Message{Object: 1, Opcode: 0, Args: args}
		encoded := message.Append(nil)
		if len(encoded)%4 != 0 {
			t.Errorf("length %d: encoded size %d is not a multiple of 4", length, len(encoded))
		}
		if len(encoded) != message.Size() {
			t.Errorf("length %d: encoded %d bytes, Size says %d", length, len(encoded), message.Size())
		}
	}
}

func TestNullVersusEmptyString(t *testing.T) {
	t.Parallel()

	null := (&Message{Object: 1, Opcode: 0, Args: []Arg{NullString{}}}).Append(nil)
	empty := (&Message{Object: 1, Opcode: 0, Args: []Arg{String("")}}).Append(nil)

	// Null encodes as a zero length word; empty as length 1 (the NUL)
	// plus a padded word of payload.
	if len(null) != HeaderSize+4 {
		t.Errorf("null string encoding is %d bytes, want %d", len(null), HeaderSize+4)
	}
	if len(empty) != HeaderSize+8 {
		t.Errorf("empty string encoding is %d bytes, want %d", len(empty), HeaderSize+8)
	}

	signature := []ArgSpec{{Name: "s", Kind: KindOptString}}
	desc := &MessageDesc{Name: "probe", Signature: signature}

	decodedNull, err := DecodeBody(desc, null[HeaderSize:], &fileStack{})
	if err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if _, ok := decodedNull[0].(NullString); !ok {
		t.Errorf("null string decoded as %#v", decodedNull[0])
	}

	decodedEmpty, err := DecodeBody(desc, empty[HeaderSize:], &fileStack{})
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if s, ok := decodedEmpty[0].(String); !ok || s != "" {
		t.Errorf("empty string decoded as %#v", decodedEmpty[0])
	}
}

func TestParseHeaderRejectsMalformed(t *testing.T) {
	t.Parallel()

	valid := (&Message{Object: 5, Opcode: 1, Args: []Arg{Uint(0)}}).Append(nil)

	corrupt := func(mutate func([]byte)) []byte {
		header := bytes.Clone(valid)
		mutate(header)
		return header
	}

	tests := []struct {
		name  string
		bytes []byte
	}{
		{"short", valid[:6]},
		{"null_object", corrupt(func(b []byte) { copy(b, []byte{0, 0, 0, 0}) })},
		{"length_below_header", corrupt(func(b []byte) { putHeaderSize(b, 4) })},
		{"length_unaligned", corrupt(func(b []byte) { putHeaderSize(b, 13) })},
		{"length_over_cap", corrupt(func(b []byte) { putHeaderSize(b, MaxMessageSize+4) })},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseHeader(test.bytes)
			var framing *FramingError
			if !errors.As(err, &framing) {
				t.Errorf("ParseHeader: got %v, want a FramingError", err)
			}
		})
	}
}

// putHeaderSize rewrites the size half of the second header word,
// keeping the opcode.
func putHeaderSize(header []byte, size uint16) {
	opcode := uint16(binary.NativeEndian.Uint32(header[4:8]))
	binary.NativeEndian.PutUint32(header[4:8], uint32(size)<<16|uint32(opcode))
}

func TestDecodeBodyRejectsMalformed(t *testing.T) {
	t.Parallel()

	stringDesc := &MessageDesc{Name: "probe", Signature: []ArgSpec{{Name: "s", Kind: KindString}}}

	tests := []struct {
		name string
		desc *MessageDesc
		body []byte
	}{
		{
			name: "truncated_word",
			desc: &MessageDesc{Name: "probe", Signature: []ArgSpec{{Name: "v", Kind: KindUint}}},
			body: []byte{1, 2},
		},
		{
			name: "string_payload_truncated",
			desc: stringDesc,
			body: appendWord(nil, 64),
		},
		{
			name: "string_null_in_non_nullable",
			desc: stringDesc,
			body: appendWord(nil, 0),
		},
		{
			name: "string_missing_nul",
			desc: stringDesc,
			body: append(appendWord(nil, 4), 'a', 'b', 'c', 'd'),
		},
		{
			name: "string_interior_nul",
			desc: stringDesc,
			body: append(appendWord(nil, 4), 'a', 0, 'c', 0),
		},
		{
			name: "null_object_in_non_nullable",
			desc: &MessageDesc{Name: "probe", Signature: []ArgSpec{{Name: "o", Kind: KindObject}}},
			body: appendWord(nil, 0),
		},
		{
			name: "trailing_bytes",
			desc: &MessageDesc{Name: "probe", Signature: []ArgSpec{{Name: "v", Kind: KindUint}}},
			body: appendWord(appendWord(nil, 1), 2),
		},
		{
			name: "fd_queue_empty",
			desc: &MessageDesc{Name: "probe", Signature: []ArgSpec{{Name: "f", Kind: KindFD}}},
			body: nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeBody(test.desc, test.body, &fileStack{})
			var framing *FramingError
			if !errors.As(err, &framing) {
				t.Errorf("DecodeBody: got %v, want a FramingError", err)
			}
		})
	}
}

func TestFixedConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fixed Fixed
		float float64
		whole int32
	}{
		{"zero", FixedFromInt(0), 0, 0},
		{"one", FixedFromInt(1), 1, 1},
		{"minus_one", FixedFromInt(-1), -1, -1},
		{"one_and_a_half", FixedFromFloat(1.5), 1.5, 1},
		{"minus_one_and_a_half", FixedFromFloat(-1.5), -1.5, -1},
		{"smallest_step", Fixed(1), 1.0 / 256, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := test.fixed.Float(); got != test.float {
				t.Errorf("Float: got %v, want %v", got, test.float)
			}
			if got := test.fixed.Int(); got != test.whole {
				t.Errorf("Int: got %v, want %v", got, test.whole)
			}
		})
	}

	// Conversion truncates toward zero beyond the 1/256 step.
	if FixedFromFloat(0.3).Float() >= 0.3 {
		t.Error("FixedFromFloat(0.3) should truncate below 0.3")
	}
	if !FixedFromInt(7).IsInt() || FixedFromFloat(7.5).IsInt() {
		t.Error("IsInt misclassified a value")
	}
}

func TestValidateArgsMismatches(t *testing.T) {
	t.Parallel()

	signature := []ArgSpec{
		{Name: "count", Kind: KindUint},
		{Name: "target", Kind: KindObject},
	}

	tests := []struct {
		name string
		args []Arg
	}{
		{"too_few", []Arg{Uint(1)}},
		{"too_many", []Arg{Uint(1), Object(2), Int(3)}},
		{"wrong_kind", []Arg{Int(1), Object(2)}},
		{"null_in_non_nullable", []Arg{Uint(1), Object(0)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateArgs(signature, test.args); err == nil {
				t.Error("ValidateArgs accepted invalid arguments")
			}
		})
	}

	if err := ValidateArgs(signature, []Arg{Uint(1), Object(2)}); err != nil {
		t.Errorf("ValidateArgs rejected valid arguments: %v", err)
	}
}
