// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"errors"
	"log/slog"

	"github.com/go-lime/limeacquire/pkg/iomem"
	"github.com/go-lime/limeacquire/pkg/source"
)

// openSourceForTest lets package tests substitute a fake Source without
// touching real kernel devices; production code always goes through the
// default value, selectSource itself.
var openSourceForTest = selectSource

// openDevice is indirected so probe tests can substitute fake per-kind
// openers instead of touching real kernel devices.
var openDevice = source.Open

// selectSource opens forced if non-nil, otherwise probes source.ProbeOrder
// and returns the first kind that opens and yields at least one page of
// non-failing data from firstRange, per spec.md §4.2. Probing never
// consumes firstRange's data from the caller's perspective: only page-sized
// reads at firstRange.Start are issued, and the returned Source has not
// been advanced (each Source.Read call is addressed by absolute physical
// address, so no reset is actually needed beyond re-using the same Source).
//
// If every candidate fails with ErrAccessDenied, acquisition fails with
// ErrLockdownSuspected rather than the more generic ErrNoMemorySource.
func selectSource(log *slog.Logger, forced *source.Kind, pageSize int, firstRange iomem.Range) (source.Source, error) {
	if forced != nil {
		s, err := openDevice(*forced, pageSize)
		if err != nil {
			return nil, wrap(ErrNoMemorySource, err)
		}
		return s, nil
	}

	probeLen := pageSize
	if firstRange.Len() < uint64(probeLen) {
		probeLen = int(firstRange.Len())
	}
	buf := make([]byte, probeLen)

	allDenied := true
	var lastErr error

	for _, kind := range source.ProbeOrder {
		s, err := openDevice(kind, pageSize)
		if err != nil {
			log.Debug("source open failed during probe", "source", kind.String(), "err", err)
			if !errors.Is(err, source.ErrAccessDenied) {
				allDenied = false
			}
			lastErr = err
			continue
		}

		_, err = s.Read(firstRange.Start, buf)
		if err != nil {
			log.Debug("source probe read failed", "source", kind.String(), "err", err)
			if !errors.Is(err, source.ErrAccessDenied) {
				allDenied = false
			}
			lastErr = err
			s.Close()
			continue
		}

		log.Info("selected memory source", "source", kind.String())
		return s, nil
	}

	if allDenied && lastErr != nil {
		return nil, wrap(ErrLockdownSuspected, lastErr)
	}
	return nil, wrap(ErrNoMemorySource, lastErr)
}
