// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// freeDiskBytes reports the free space available on the filesystem backing
// the directory that will hold outputPath, for --max-disk-usage-percentage.
func freeDiskBytes(outputPath string) (uint64, error) {
	dir := filepath.Dir(outputPath)
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
