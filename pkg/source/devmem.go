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

// devMemPath is the character device exposing raw physical memory.
const devMemPath = "/dev/mem"

// devMem is the byte-granular /dev/mem source.
type devMem struct {
	f *os.File
}

func openDevMem() (Source, error) {
	f, err := os.OpenFile(devMemPath, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, devMemPath, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, devMemPath, err)
	}
	return &devMem{f: f}, nil
}

func (d *devMem) Kind() Kind { return DevMem }

func (d *devMem) Capabilities() Capabilities {
	return Capabilities{}
}

func (d *devMem) Read(physAddr uint64, buf []byte) (int, error) {
	n, err := unix.Pread(int(d.f.Fd()), buf, int64(physAddr))
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

func (d *devMem) Close() error {
	return d.f.Close()
}
