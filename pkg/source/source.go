// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source implements the polymorphic memory-source abstraction: a
// uniform "read physical memory" operation over the small closed set of
// Linux kernel interfaces that expose it (/dev/crash, /proc/kcore,
// /dev/mem).
//
// Each of the three cases implements the Source interface, so reads go
// through dynamic dispatch on that interface; every Source also reports
// its Kind tag and its Capabilities flags.
package source

import (
	"errors"
)

// Kind identifies which backing device a Source reads from.
type Kind int

const (
	// DevCrash reads /dev/crash: page-aligned, page-sized reads only.
	DevCrash Kind = iota
	// ProcKcore reads /proc/kcore: an ELF core exposing physical memory
	// through a virtual address alias, byte-granular.
	ProcKcore
	// DevMem reads /dev/mem directly, byte-granular.
	DevMem
)

func (k Kind) String() string {
	switch k {
	case DevCrash:
		return "/dev/crash"
	case ProcKcore:
		return "/proc/kcore"
	case DevMem:
		return "/dev/mem"
	default:
		return "unknown"
	}
}

// ProbeOrder is the fixed order the orchestrator probes sources in when the
// user does not force one with --source.
var ProbeOrder = []Kind{DevCrash, ProcKcore, DevMem}

// Capabilities describes constraints a Source imposes on its callers. The
// orchestrator consults AlignmentRequired to choose between Raw and Padded
// encoding; VirtualAddressed is informational only (surfaced for
// diagnostics).
type Capabilities struct {
	// AlignmentRequired means reads must start at a page boundary and
	// request a whole multiple of the page size. DevCrash only.
	AlignmentRequired bool
	// VirtualAddressed means the device is not physical-address
	// addressable directly; physical addresses are translated through a
	// segment table. ProcKcore only.
	VirtualAddressed bool
}

// Source reads physical memory from one backing device.
type Source interface {
	// Kind reports which backing device this Source reads from.
	Kind() Kind

	// Capabilities reports the constraints this Source imposes.
	Capabilities() Capabilities

	// Read copies up to len(buf) bytes of physical memory starting at
	// physAddr into buf, returning the number of bytes actually read.
	// A short read is not an error by itself; callers (the LiME writer)
	// decide how to handle it per Capabilities.
	Read(physAddr uint64, buf []byte) (int, error)

	// Close releases the backing device.
	Close() error
}

// Sentinel errors surfaced to callers per the spec's error taxonomy.
var (
	// ErrSourceUnavailable means the backing device could not be opened.
	ErrSourceUnavailable = errors.New("source: unavailable")
	// ErrAccessDenied means the kernel refused the read (commonly due to
	// lockdown).
	ErrAccessDenied = errors.New("source: access denied")
	// ErrOutOfRange means the requested physical address is not backed by
	// any mapping this source knows about.
	ErrOutOfRange = errors.New("source: address out of range")
	// ErrIO wraps an underlying I/O failure distinct from permission or
	// range errors.
	ErrIO = errors.New("source: I/O error")
)

// Open opens the backing device for kind. pageSize is the host page size;
// only DevCrash uses it, to enforce alignment.
func Open(kind Kind, pageSize int) (Source, error) {
	switch kind {
	case DevCrash:
		return openDevCrash(pageSize)
	case ProcKcore:
		return openProcKcore()
	case DevMem:
		return openDevMem()
	default:
		return nil, ErrSourceUnavailable
	}
}
