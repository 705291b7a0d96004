// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/wayline/client"
	"github.com/bureau-foundation/wayline/lib/codec"
	"github.com/bureau-foundation/wayline/wire"
)

// Recorder writes capture records through a compressor to a
// destination. It implements the client tracer hook; install it with
// the connection's Tracer option. Like the connection it observes, a
// Recorder is confined to one goroutine.
//
// Write errors are sticky: the first one stops recording and is
// reported by Close.
type Recorder struct {
	dst     io.Writer
	digest  *blake3.Hasher
	encoder *codec.Encoder
	finish  func() error
	count   int
	closed  bool
	err     error
}

// NewRecorder writes a capture header to dst and returns a Recorder
// appending records compressed with the given algorithm. Close
// finishes the stream and writes the integrity trailer; dst itself is
// never closed.
func NewRecorder(dst io.Writer, compression Compression) (*Recorder, error) {
	switch compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("trace: unsupported compression tag: %d", compression)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, captureMagic[:]...)
	header = append(header, captureVersion, byte(compression))
	if _, err := dst.Write(header); err != nil {
		return nil, fmt.Errorf("trace: writing capture header: %w", err)
	}

	// The trailer covers the compressed payload, so the digest taps
	// the stream between the compressor and the destination.
	digest := newCaptureDigest()
	sink := io.MultiWriter(dst, digest)

	recorder := &Recorder{dst: dst, digest: digest}
	switch compression {
	case CompressionNone:
		recorder.encoder = codec.NewEncoder(sink)
		recorder.finish = func() error { return nil }
	case CompressionLZ4:
		lw := lz4.NewWriter(sink)
		recorder.encoder = codec.NewEncoder(lw)
		recorder.finish = lw.Close
	case CompressionZstd:
		zw, err := zstd.NewWriter(sink,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("trace: zstd writer: %w", err)
		}
		recorder.encoder = codec.NewEncoder(zw)
		recorder.finish = zw.Close
	}
	return recorder, nil
}

// Trace records one message. It satisfies the client Tracer
// interface, so it cannot return an error; failures stop recording
// and surface from Close.
func (r *Recorder) Trace(record client.Record) {
	if r.closed || r.err != nil {
		return
	}
	if err := r.encoder.Encode(convertRecord(record)); err != nil {
		r.err = fmt.Errorf("trace: writing record: %w", err)
		return
	}
	r.count++
}

// Count returns the number of records written so far.
func (r *Recorder) Count() int { return r.count }

// Close finishes the compressed stream and writes the integrity
// trailer. It returns the first error encountered while recording, in
// which case no trailer is written and the capture will not verify.
func (r *Recorder) Close() error {
	if r.closed {
		return r.err
	}
	r.closed = true

	// The compression layer is always closed, even after a record
	// error, to release its resources.
	if err := r.finish(); err != nil && r.err == nil {
		r.err = fmt.Errorf("trace: finishing compressed stream: %w", err)
	}
	if r.err != nil {
		return r.err
	}
	if _, err := r.dst.Write(r.digest.Sum(nil)); err != nil {
		r.err = fmt.Errorf("trace: writing capture trailer: %w", err)
	}
	return r.err
}

// convertRecord flattens a live trace record into its capture form.
func convertRecord(record client.Record) Record {
	return Record{
		Time:      record.Time.UnixNano(),
		Direction: record.Direction.String(),
		Object:    uint32(record.Object),
		Interface: record.Interface,
		Version:   record.Version,
		Opcode:    record.Opcode,
		Message:   record.Message,
		Size:      record.Size,
		Args:      renderArgs(record.Args),
	}
}

// renderArgs renders arguments in debug notation. File descriptors
// are recorded by presence only.
func renderArgs(args []wire.Arg) []string {
	if len(args) == 0 {
		return nil
	}
	rendered := make([]string, len(args))
	for i, arg := range args {
		if _, ok := arg.(wire.FD); ok {
			rendered[i] = "fd"
			continue
		}
		rendered[i] = fmt.Sprint(arg)
	}
	return rendered
}

// newCaptureDigest returns the keyed BLAKE3 hasher for the integrity
// trailer.
func newCaptureDigest() *blake3.Hasher {
	// NewKeyed requires exactly 32 bytes, which captureDomainKey
	// guarantees.
	hasher, err := blake3.NewKeyed(captureDomainKey[:])
	if err != nil {
		panic("trace: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}
