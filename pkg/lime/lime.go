// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lime encodes and decodes the LiME ("Linux Memory Extractor")
// forensic image format: a sequence of fixed 32-byte headers, each
// followed by the payload bytes for one physical address range, in either
// raw, zero-padded, or per-page Snappy-compressed form.
package lime

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the on-disk size of a LimeHeader, in bytes.
const HeaderSize = 32

// magic is the fixed LiME header magic number, stored little-endian. Read
// as bytes it spells "EMiL".
const magic uint32 = 0x4C694D45

// version is the only LiME format version this package produces or
// accepts.
const version uint32 = 1

// Format selects how range payloads are encoded.
type Format int

const (
	// Raw payload is exactly end-start bytes, verbatim.
	Raw Format = iota
	// Padded is like Raw, but the source is read one page at a time and a
	// short read is zero-filled by the writer up to the end of that page,
	// or of the range if it ends first.
	Padded
	// Compressed payload is a sequence of length-prefixed, per-page
	// Snappy-compressed blocks (see compress.go).
	Compressed
)

func (f Format) String() string {
	switch f {
	case Raw:
		return "raw"
	case Padded:
		return "padded"
	case Compressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Header is the 32-byte fixed-layout record preceding every range's
// payload.
type Header struct {
	Start uint64
	End   uint64
}

// ErrUnsupportedFormat is returned by Decode when the magic or version of
// an input file is not recognized.
var ErrUnsupportedFormat = errors.New("lime: unsupported format")

// marshal encodes h into a HeaderSize-byte buffer.
func (h Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], version)
	binary.LittleEndian.PutUint64(buf[8:16], h.Start)
	binary.LittleEndian.PutUint64(buf[16:24], h.End)
	// buf[24:32] is reserved, left zero.
	return buf
}

// unmarshalHeader decodes a HeaderSize-byte buffer into a Header, checking
// magic and version.
func unmarshalHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("lime: short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	gotMagic := binary.LittleEndian.Uint32(buf[0:4])
	gotVersion := binary.LittleEndian.Uint32(buf[4:8])
	if gotMagic != magic || gotVersion != version {
		return Header{}, fmt.Errorf("%w: magic=%#x version=%d", ErrUnsupportedFormat, gotMagic, gotVersion)
	}
	return Header{
		Start: binary.LittleEndian.Uint64(buf[8:16]),
		End:   binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// Len returns the number of plaintext bytes this header's range covers.
func (h Header) Len() uint64 {
	return h.End - h.Start
}
