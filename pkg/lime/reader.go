// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lime

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// commonPageSize is the page size nearly every target uses; it anchors the
// autodetection heuristic's "plausible verbatim page" check below, and
// readCompressedPayload decodes every Compressed payload as a sequence of
// pages of this size (the file does not record the page size it was
// written with).
const commonPageSize = 4096

// Visitor receives one decoded range and its plaintext payload at a time.
// The payload slice must not be retained past the call.
type Visitor func(r Range, payload []byte) error

// DecodeOptions configures Decode.
type DecodeOptions struct {
	// Format, if non-nil, overrides autodetection.
	Format *Format
}

// Decode reads a LiME file from r and invokes visit once per range, in
// file order, with the range's decompressed (if needed) plaintext payload.
//
// Format autodetection reads the first header's payload prefix and checks
// whether it plausibly precedes a Snappy stream (see detectFormat); an
// explicit Format in opts skips this entirely. Unknown magic or version
// fails with ErrUnsupportedFormat.
func Decode(r io.Reader, opts DecodeOptions, visit Visitor) error {
	br := bufio.NewReader(r)

	var headerBuf [HeaderSize]byte
	first := true
	var format Format

	for {
		if _, err := io.ReadFull(br, headerBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("lime: reading header: %w", err)
		}
		hdr, err := unmarshalHeader(headerBuf[:])
		if err != nil {
			return err
		}

		if first {
			first = false
			if opts.Format != nil {
				format = *opts.Format
			} else {
				format, err = detectFormat(br, hdr.Len())
				if err != nil {
					return err
				}
			}
		}

		payload, err := readPayload(br, hdr, format)
		if err != nil {
			return err
		}
		if err := visit(Range{Start: hdr.Start, End: hdr.End}, payload); err != nil {
			return err
		}
	}
}

// readPayload reads one range's worth of payload in the given format.
func readPayload(br *bufio.Reader, hdr Header, format Format) ([]byte, error) {
	switch format {
	case Compressed:
		return readCompressedPayload(br, hdr)
	default: // Raw and Padded decode identically: exactly hdr.Len() bytes.
		buf := make([]byte, hdr.Len())
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("lime: reading payload for range [%x,%x): %w", hdr.Start, hdr.End, err)
		}
		return buf, nil
	}
}

func readCompressedPayload(br *bufio.Reader, hdr Header) ([]byte, error) {
	total := hdr.Len()
	out := make([]byte, 0, total)
	var read uint64
	for read < total {
		want := uint64(commonPageSize)
		if remaining := total - read; want > remaining {
			want = remaining
		}
		page, err := decodePage(br, int(want))
		if err != nil {
			return nil, fmt.Errorf("lime: range [%x,%x): %w", hdr.Start, hdr.End, err)
		}
		out = append(out, page...)
		read += want
	}
	return out, nil
}

// detectFormat peeks the bytes immediately following the first header and
// decides whether they look like a Compressed payload: a plausible
// 4-byte little-endian length prefix followed by either a valid Snappy
// stream or a verbatim page-sized block.
func detectFormat(br *bufio.Reader, rangeLen uint64) (Format, error) {
	peek, err := br.Peek(4)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Raw, nil
		}
		return Raw, fmt.Errorf("lime: peeking format prefix: %w", err)
	}
	l := binary.LittleEndian.Uint32(peek)
	if uint64(l) == 0 || uint64(l) > rangeLen {
		return Raw, nil
	}

	body, err := br.Peek(4 + int(l))
	if err != nil {
		// Not enough buffered data to confirm; assume uncompressed rather
		// than risk misparsing a short file.
		return Raw, nil
	}
	block := body[4:]

	if uint64(l) == commonPageSize || uint64(l) == rangeLen {
		// Could be a verbatim (incompressible) block.
		return Compressed, nil
	}
	if _, err := snappy.Decode(nil, block); err == nil {
		return Compressed, nil
	}
	return Raw, nil
}
