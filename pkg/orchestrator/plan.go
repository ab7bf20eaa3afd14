// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package orchestrator builds an AcquisitionPlan from CLI-level inputs and
// drives the Memory Source -> LiME Writer -> (optional) Upload Engine
// pipeline, enforcing the disk-usage cap and delete-on-success semantics of
// spec.md §4.5.
package orchestrator

import (
	"io"
	"net/http"

	"github.com/go-lime/limeacquire/pkg/lime"
	"github.com/go-lime/limeacquire/pkg/source"
	"github.com/go-lime/limeacquire/pkg/upload"
)

// Plan is the AcquisitionPlan of spec.md §3: everything decided once at
// startup and consumed by Run.
type Plan struct {
	// OutputPath is the destination LiME file.
	OutputPath string
	// Format selects Raw or Compressed encoding (Padded is an internal
	// writer detail driven by the selected source's AlignmentRequired
	// capability, not a user-facing choice).
	Format lime.Format
	// PageSize is the host page size, used for DevCrash alignment and
	// Compressed page framing.
	PageSize int

	// ForcedSource, if non-nil, skips probing and uses this source kind
	// exclusively (--source).
	ForcedSource *source.Kind

	// MaxDiskUsageBytes, if non-zero, caps the estimated acquisition size;
	// Run aborts with ErrDiskCapExceeded before opening a source if the sum
	// of memory map range lengths exceeds it.
	MaxDiskUsageBytes uint64

	// UploadURL, if non-empty, is a generic HTTP PUT destination.
	UploadURL string
	// SASURL, if non-empty, is an Azure-style block-blob destination.
	// UploadURL and SASURL are mutually exclusive; CLI validation enforces
	// this before Run is called.
	SASURL              string
	SASBlockSize        int64
	SASBlockConcurrency int

	// DeleteOnSuccess unlinks OutputPath once upload's commit step
	// succeeds. No-op if neither UploadURL nor SASURL is set.
	DeleteOnSuccess bool

	// IomemReader overrides the default /proc/iomem source, for tests and
	// for re-running acquisition against a captured memory map.
	IomemReader io.Reader

	// HTTPClient is the collaborator generic PUT uploads go through; nil
	// selects http.DefaultClient. It is an external collaborator per
	// spec.md §1, never constructed by this package.
	HTTPClient *http.Client

	// Reporter receives optional upload progress events (spec.md §4.4
	// design note); nil is always valid.
	Reporter upload.Reporter
}
