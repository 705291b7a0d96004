// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/wayline/lib/codec"
)

// Reader decodes records from a verified capture. NewReader checks
// the header and the integrity trailer before any record is yielded,
// so a Reader never exists for a corrupt capture.
type Reader struct {
	compression Compression
	decoder     *codec.Decoder
}

// NewReader consumes src completely and verifies the capture.
func NewReader(src io.Reader) (*Reader, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("trace: reading capture: %w", err)
	}
	if len(raw) >= len(captureMagic) && !bytes.Equal(raw[:len(captureMagic)], captureMagic[:]) {
		return nil, ErrBadMagic
	}
	if len(raw) < headerSize+digestSize {
		return nil, ErrTruncated
	}
	if version := raw[len(captureMagic)]; version != captureVersion {
		return nil, fmt.Errorf("trace: unsupported capture version %d", version)
	}
	compression := Compression(raw[len(captureMagic)+1])

	payload := raw[headerSize : len(raw)-digestSize]
	trailer := raw[len(raw)-digestSize:]
	digest := newCaptureDigest()
	digest.Write(payload)
	if !bytes.Equal(digest.Sum(nil), trailer) {
		return nil, ErrDigestMismatch
	}

	plain, err := decompress(payload, compression)
	if err != nil {
		return nil, err
	}
	return &Reader{
		compression: compression,
		decoder:     codec.NewDecoder(bytes.NewReader(plain)),
	}, nil
}

// Compression reports the algorithm named in the capture header.
func (r *Reader) Compression() Compression { return r.compression }

// Next decodes the next record. It returns io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var record Record
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("trace: decoding record: %w", err)
	}
	return record, nil
}

// ReadAll verifies a capture and collects every record.
func ReadAll(src io.Reader) ([]Record, error) {
	reader, err := NewReader(src)
	if err != nil {
		return nil, err
	}
	var records []Record
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// decompress expands the record stream per the header tag.
func decompress(payload []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil

	case CompressionLZ4:
		plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("trace: lz4 decompress: %w", err)
		}
		return plain, nil

	case CompressionZstd:
		zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("trace: zstd reader: %w", err)
		}
		defer zr.Close()
		plain, err := zr.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("trace: zstd decompress: %w", err)
		}
		return plain, nil

	default:
		return nil, fmt.Errorf("trace: unsupported compression tag: %d", compression)
	}
}
