// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// procKcorePath is the ELF core exposing kernel (and, through it,
// physical) memory via a virtual-address alias.
const procKcorePath = "/proc/kcore"

// kcoreSegment is one (physical range, file offset) entry of the segment
// table built once at open time from the PT_LOAD program headers of
// /proc/kcore. The kernel sets each such header's physical address field
// (p_paddr) to the actual physical address backing that segment, which is
// what lets a physical read be translated to a file offset without ever
// walking the kernel's page tables directly.
type kcoreSegment struct {
	physStart uint64
	physEnd   uint64 // exclusive
	fileOff   uint64
}

// procKcore is the ELF-backed /proc/kcore source.
type procKcore struct {
	f        *os.File
	segments []kcoreSegment // sorted ascending by physStart
}

func openProcKcore() (Source, error) {
	f, err := os.OpenFile(procKcorePath, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, procKcorePath, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, procKcorePath, err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: parsing ELF header: %v", ErrSourceUnavailable, procKcorePath, err)
	}

	segs, err := buildSegmentTable(ef)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, procKcorePath, err)
	}

	return &procKcore{f: f, segments: segs}, nil
}

// buildSegmentTable extracts a sorted, non-overlapping table of
// (physStart, physEnd, fileOff) from the PT_LOAD program headers whose
// physical address is backed by file data. Segments with Filesz == 0 (pure
// bss-like holes) are omitted; reads that fall in the resulting gaps are
// treated as holes by Read, not errors.
func buildSegmentTable(ef *elf.File) ([]kcoreSegment, error) {
	var segs []kcoreSegment
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz == 0 {
			continue
		}
		segs = append(segs, kcoreSegment{
			physStart: prog.Paddr,
			physEnd:   prog.Paddr + prog.Filesz,
			fileOff:   prog.Off,
		})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].physStart < segs[j].physStart })
	return segs, nil
}

// findSegment returns the segment covering physAddr, or nil if physAddr
// falls in a hole.
func (p *procKcore) findSegment(physAddr uint64) *kcoreSegment {
	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].physEnd > physAddr
	})
	if i == len(p.segments) {
		return nil
	}
	seg := &p.segments[i]
	if physAddr < seg.physStart {
		return nil
	}
	return seg
}

func (p *procKcore) Kind() Kind { return ProcKcore }

func (p *procKcore) Capabilities() Capabilities {
	return Capabilities{VirtualAddressed: true}
}

// Read copies bytes from the segment covering physAddr. A physical address
// not covered by any segment yields zero bytes with no error: the caller
// (the LiME writer) treats that as a hole and zero-fills it.
func (p *procKcore) Read(physAddr uint64, buf []byte) (int, error) {
	seg := p.findSegment(physAddr)
	if seg == nil {
		return 0, nil
	}

	avail := seg.physEnd - physAddr
	want := uint64(len(buf))
	if want > avail {
		want = avail
	}
	off := seg.fileOff + (physAddr - seg.physStart)

	n, err := p.f.ReadAt(buf[:want], int64(off))
	if err != nil && err != io.EOF {
		switch {
		case errors.Is(err, os.ErrPermission):
			return n, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		default:
			return n, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return n, nil
}

func (p *procKcore) Close() error {
	return p.f.Close()
}
