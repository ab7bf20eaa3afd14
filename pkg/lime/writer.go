// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lime

import (
	"fmt"
	"io"
)

// Range is a half-open physical address interval [Start, End), decoupled
// from pkg/iomem so this package has no dependency on how ranges were
// discovered.
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of bytes the range covers.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// PhysReader is the minimal read operation this package needs from a
// memory source: copy up to len(buf) bytes of physical memory starting at
// physAddr into buf, returning the number of bytes actually read.
type PhysReader interface {
	Read(physAddr uint64, buf []byte) (int, error)
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	Format Format
	// PageSize is the unit Padded and Compressed encodings operate over.
	// Ignored for Raw.
	PageSize int
}

// Encode writes ranges, read from src, to w in the requested format. Padded
// and Compressed stream one page at a time through one page buffer plus
// (for Compressed) one compressed-block buffer; Raw streams through a
// single 1 MiB buffer.
func Encode(w io.Writer, ranges []Range, src PhysReader, opts EncodeOptions) error {
	switch opts.Format {
	case Raw:
		return encodeRaw(w, ranges, src)
	case Padded:
		return encodePadded(w, ranges, src, opts.PageSize)
	case Compressed:
		return encodeCompressed(w, ranges, src, opts.PageSize)
	default:
		return fmt.Errorf("lime: unknown format %v", opts.Format)
	}
}

func writeHeader(w io.Writer, r Range) error {
	_, err := w.Write(Header{Start: r.Start, End: r.End}.marshal())
	return err
}

// encodeRaw copies exactly r.Len() bytes per range, verbatim. Short reads
// from the source are an I/O error here: Raw format makes no zero-fill
// promise.
func encodeRaw(w io.Writer, ranges []Range, src PhysReader) error {
	const chunkSize = 1 << 20 // 1 MiB, bounded scratch buffer
	buf := make([]byte, chunkSize)
	for _, r := range ranges {
		if err := writeHeader(w, r); err != nil {
			return err
		}
		remaining := r.Len()
		addr := r.Start
		for remaining > 0 {
			want := uint64(len(buf))
			if want > remaining {
				want = remaining
			}
			n, err := src.Read(addr, buf[:want])
			if err != nil {
				return fmt.Errorf("lime: reading range [%x,%x) at %x: %w", r.Start, r.End, addr, err)
			}
			if n == 0 {
				return fmt.Errorf("lime: short read in range [%x,%x) at %x: raw format requires full data", r.Start, r.End, addr)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("lime: writing payload: %w", err)
			}
			addr += uint64(n)
			remaining -= uint64(n)
		}
	}
	return nil
}

// encodePadded reads one page at a time; a short read is zero-filled up to
// the end of that page, or of the range if it ends first, so the payload is
// exactly r.Len() bytes.
func encodePadded(w io.Writer, ranges []Range, src PhysReader, pageSize int) error {
	page := make([]byte, pageSize)
	for _, r := range ranges {
		if err := writeHeader(w, r); err != nil {
			return err
		}
		if err := forEachPage(r, pageSize, func(addr uint64, want int) error {
			n, err := src.Read(addr, page[:want])
			if err != nil {
				return fmt.Errorf("lime: reading range [%x,%x) at %x: %w", r.Start, r.End, addr, err)
			}
			for i := n; i < want; i++ {
				page[i] = 0
			}
			_, err = w.Write(page[:want])
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// encodeCompressed reads one page at a time and writes it as a
// length-prefixed Snappy record. The last page of a range may be short;
// the writer never pads it, since the header's range length remains the
// authoritative plaintext length for the decoder.
func encodeCompressed(w io.Writer, ranges []Range, src PhysReader, pageSize int) error {
	page := make([]byte, pageSize)
	record := make([]byte, 0, pageSize+4)
	for _, r := range ranges {
		if err := writeHeader(w, r); err != nil {
			return err
		}
		if err := forEachPage(r, pageSize, func(addr uint64, want int) error {
			n, err := src.Read(addr, page[:want])
			if err != nil {
				return fmt.Errorf("lime: reading range [%x,%x) at %x: %w", r.Start, r.End, addr, err)
			}
			for i := n; i < want; i++ {
				page[i] = 0
			}
			record = encodePage(page[:want], record[:0])
			_, err = w.Write(record)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// forEachPage calls fn once per page-sized (or shorter, at the tail) chunk
// of r, passing the physical address and the number of plaintext bytes
// expected for that chunk.
func forEachPage(r Range, pageSize int, fn func(addr uint64, want int) error) error {
	addr := r.Start
	for addr < r.End {
		want := uint64(pageSize)
		if remaining := r.End - addr; want > remaining {
			want = remaining
		}
		if err := fn(addr, int(want)); err != nil {
			return err
		}
		addr += want
	}
	return nil
}
