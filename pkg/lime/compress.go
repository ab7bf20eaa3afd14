// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lime

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// encodePage compresses one page of plaintext into a length-prefixed
// record: a 4-byte little-endian compressed length followed by that many
// bytes of Snappy-compressed data.
//
// If compression would not shrink the page (pathological or
// already-dense input), the record instead carries the plaintext verbatim
// with the length field set to len(plain). Decoders recognize this case by
// comparing the recorded length against the plaintext length they expect
// for that page; see decodePage.
func encodePage(plain []byte, dst []byte) []byte {
	encoded := snappy.Encode(nil, plain)
	if len(encoded) >= len(plain) {
		encoded = plain
	}

	lenPrefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenPrefix, uint32(len(encoded)))
	dst = append(dst, lenPrefix...)
	dst = append(dst, encoded...)
	return dst
}

// decodePage reads one length-prefixed compressed record from r and
// returns its decompressed plaintext, which must be exactly plainLen
// bytes (the authoritative length derived from the range header, not from
// the record itself).
func decodePage(r io.Reader, plainLen int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("lime: reading compressed block length: %w", err)
	}
	l := binary.LittleEndian.Uint32(lenBuf[:])

	body := make([]byte, l)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("lime: reading compressed block body: %w", err)
	}

	if int(l) == plainLen {
		// Verbatim block: length equals the expected plaintext length for
		// this page, so no decompression is performed.
		return body, nil
	}

	plain, err := snappy.Decode(make([]byte, 0, plainLen), body)
	if err != nil {
		return nil, fmt.Errorf("lime: decompressing block: %w", err)
	}
	if len(plain) != plainLen {
		return nil, fmt.Errorf("lime: decompressed block is %d bytes, want %d", len(plain), plainLen)
	}
	return plain, nil
}
