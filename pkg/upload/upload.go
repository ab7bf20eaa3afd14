// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package upload delivers a finished acquisition image to remote storage:
// either a single generic HTTP PUT, or an Azure-style block blob upload
// with bounded worker-pool concurrency, retry, and a final commit.
package upload

import (
	"errors"
	"fmt"
)

// ErrUploadFailed is the sentinel wrapped by every terminal upload failure,
// whether from retry exhaustion or a non-retryable status code.
var ErrUploadFailed = errors.New("upload: failed")

// FailedError carries the last underlying cause and, if the failure came
// from an HTTP response, its status code.
type FailedError struct {
	LastErr    error
	LastStatus int // 0 if the failure wasn't an HTTP response
}

func (e *FailedError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("upload: failed after last HTTP status %d: %v", e.LastStatus, e.LastErr)
	}
	return fmt.Sprintf("upload: failed: %v", e.LastErr)
}

func (e *FailedError) Unwrap() error {
	return ErrUploadFailed
}

// BlockState is the commit-state lifecycle of one UploadBlock.
type BlockState int

const (
	Pending BlockState = iota
	InFlight
	Acked
	Failed
)

// Reporter receives optional progress updates from the upload engine. A
// nil Reporter is always valid; absence must never change upload
// semantics, only whether these calls happen.
type Reporter interface {
	BytesEnqueued(n uint64)
	BytesAcked(n uint64)
	Retry(blockIndex, attempt int)
}

// maxBlocks bounds the block count so id rendering and the remote's own
// per-blob block limit are respected (Azure caps block blobs at 50,000
// blocks).
const maxBlocks = 50000
