// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// devCrashPath is the read-only character device that enforces
// page-aligned, page-sized reads.
const devCrashPath = "/dev/crash"

// devCrash is the page-aligned /dev/crash source.
type devCrash struct {
	f        *os.File
	pageSize int
}

func openDevCrash(pageSize int) (Source, error) {
	f, err := os.OpenFile(devCrashPath, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, devCrashPath, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, devCrashPath, err)
	}
	return &devCrash{f: f, pageSize: pageSize}, nil
}

func (d *devCrash) Kind() Kind { return DevCrash }

func (d *devCrash) Capabilities() Capabilities {
	return Capabilities{AlignmentRequired: true}
}

// Read services a request that may not itself be page-aligned or
// page-sized by splitting it into whole-page device reads, using a scratch
// page buffer for a partial tail. physAddr itself must still be
// a multiple of the page size; only the length is allowed to be short
// (the normal case at the final page of a range).
func (d *devCrash) Read(physAddr uint64, buf []byte) (int, error) {
	if physAddr%uint64(d.pageSize) != 0 {
		return 0, fmt.Errorf("%w: physAddr %x is not page-aligned", ErrOutOfRange, physAddr)
	}

	total := 0
	scratch := make([]byte, d.pageSize)
	for total < len(buf) {
		remaining := len(buf) - total
		if remaining >= d.pageSize {
			n, err := d.readPage(physAddr+uint64(total), buf[total:total+d.pageSize])
			total += n
			if err != nil || n < d.pageSize {
				return total, err
			}
			continue
		}

		// Short final chunk: read a whole page into scratch, copy the
		// prefix the caller actually asked for.
		n, err := d.readPage(physAddr+uint64(total), scratch)
		copy(buf[total:], scratch[:min(n, remaining)])
		total += min(n, remaining)
		return total, err
	}
	return total, nil
}

func (d *devCrash) readPage(physAddr uint64, page []byte) (int, error) {
	n, err := unix.Pread(int(d.f.Fd()), page, int64(physAddr))
	if err != nil {
		switch {
		case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
			return n, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case errors.Is(err, unix.EFAULT), errors.Is(err, unix.ENXIO):
			return n, fmt.Errorf("%w: %v", ErrOutOfRange, err)
		default:
			return n, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return n, nil
}

func (d *devCrash) Close() error {
	return d.f.Close()
}
