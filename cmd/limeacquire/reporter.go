// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"log/slog"
	"sync/atomic"
)

// stderrReporter implements upload.Reporter by logging cumulative progress
// through the CLI's slog.Logger; a nil Reporter is always valid per
// pkg/upload's contract, so this type only exists when --progress is set.
type stderrReporter struct {
	log     *slog.Logger
	enq     atomic.Uint64
	acked   atomic.Uint64
	retries atomic.Int64
}

func newStderrReporter(log *slog.Logger) *stderrReporter {
	return &stderrReporter{log: log}
}

func (r *stderrReporter) BytesEnqueued(n uint64) {
	total := r.enq.Add(n)
	r.log.Info("upload progress", "enqueued", total, "acked", r.acked.Load())
}

func (r *stderrReporter) BytesAcked(n uint64) {
	total := r.acked.Add(n)
	r.log.Info("upload progress", "enqueued", r.enq.Load(), "acked", total)
}

func (r *stderrReporter) Retry(blockIndex, attempt int) {
	r.retries.Add(1)
	r.log.Warn("upload retry", "block", blockIndex, "attempt", attempt)
}
