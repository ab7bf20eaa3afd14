// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-lime/limeacquire/pkg/iomem"
	"github.com/go-lime/limeacquire/pkg/lime"
	"github.com/go-lime/limeacquire/pkg/source"
)

// Run executes the full acquisition pipeline described by plan: memory map
// discovery, disk-cap enforcement, source selection, LiME encoding, and
// optional upload with delete-on-success. It returns an error satisfying
// ExitCode for every failure mode of spec.md §7.
func Run(ctx context.Context, plan Plan, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	ranges, err := readMemoryMap(plan)
	if err != nil {
		if errors.Is(err, iomem.ErrNoRAMFound) {
			return wrap(ErrNoRamFound, err)
		}
		return wrap(ErrIoError, err)
	}
	log.Info("memory map loaded", "ranges", len(ranges))

	if plan.MaxDiskUsageBytes > 0 {
		estimate := estimateSize(ranges)
		if estimate > plan.MaxDiskUsageBytes {
			return wrap(ErrDiskCapExceeded, fmt.Errorf("estimated %d bytes exceeds cap of %d bytes", estimate, plan.MaxDiskUsageBytes))
		}
	}

	src, err := openSourceForTest(log, plan.ForcedSource, plan.PageSize, ranges[0])
	if err != nil {
		return err // already wrapped by selectSource
	}
	defer src.Close()

	if err := acquire(plan, ranges, src, log); err != nil {
		removeIfEmpty(plan.OutputPath, log)
		return wrap(ErrIoError, err)
	}
	log.Info("acquisition complete", "output", plan.OutputPath)

	if plan.UploadURL == "" && plan.SASURL == "" {
		return nil
	}

	if err := uploadOutput(ctx, plan, log); err != nil {
		return wrap(ErrUploadFailed, err)
	}
	log.Info("upload complete")

	if plan.DeleteOnSuccess {
		if err := os.Remove(plan.OutputPath); err != nil {
			log.Warn("failed to delete local file after successful upload", "err", err)
		}
	}

	return nil
}

// readMemoryMap opens /proc/iomem (or plan.IomemReader, for tests) and
// parses it into the MemoryMap of spec.md §3.
func readMemoryMap(plan Plan) ([]iomem.Range, error) {
	if plan.IomemReader != nil {
		return iomem.Read(plan.IomemReader)
	}
	f, err := os.Open("/proc/iomem")
	if err != nil {
		return nil, fmt.Errorf("opening /proc/iomem: %w", err)
	}
	defer f.Close()
	return iomem.Read(f)
}

// removeIfEmpty deletes path if it exists and is zero-length. A failed
// acquisition otherwise leaves the output in place to aid debugging
// (spec.md §4.5/§7); an empty file carries no such diagnostic value and
// would just look like a truncated-but-started capture.
func removeIfEmpty(path string, log *slog.Logger) {
	stat, err := os.Stat(path)
	if err != nil || stat.Size() != 0 {
		return
	}
	if err := os.Remove(path); err != nil {
		log.Warn("failed to remove empty output file after failed acquisition", "err", err)
	}
}

// estimateSize sums range lengths as the pre-acquisition size estimate.
// It counts payload bytes only: the 32-byte header per range is not
// included, and neither is the 4-byte length prefix Compressed output
// writes per page, so a file whose pages do not compress can be slightly
// larger than the estimate that Run's cap check compares against.
func estimateSize(ranges []iomem.Range) uint64 {
	var total uint64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

// acquire creates the output file and drives pkg/lime's Encode over src,
// choosing Padded automatically when the selected source requires aligned
// reads and the user did not request Compressed output.
func acquire(plan Plan, ranges []iomem.Range, src source.Source, log *slog.Logger) error {
	f, err := os.Create(plan.OutputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	limeRanges := make([]lime.Range, len(ranges))
	for i, r := range ranges {
		limeRanges[i] = lime.Range{Start: r.Start, End: r.End}
	}

	format := plan.Format
	if format != lime.Compressed {
		if src.Capabilities().AlignmentRequired {
			format = lime.Padded
		} else {
			format = lime.Raw
		}
	}
	log.Debug("encoding", "format", format.String(), "page_size", plan.PageSize)

	return lime.Encode(f, limeRanges, src, lime.EncodeOptions{
		Format:   format,
		PageSize: plan.PageSize,
	})
}

// uploadOutput dispatches to the generic-PUT or block-blob backend
// depending on which destination flag was set; CLI validation guarantees
// at most one of UploadURL/SASURL is non-empty.
func uploadOutput(ctx context.Context, plan Plan, log *slog.Logger) error {
	f, err := os.Open(plan.OutputPath)
	if err != nil {
		return fmt.Errorf("reopening output file for upload: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("statting output file: %w", err)
	}

	if plan.UploadURL != "" {
		client := plan.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		log.Info("uploading via generic PUT", "size", stat.Size())
		return putUpload(ctx, client, plan.UploadURL, f, stat.Size(), plan.Reporter)
	}

	log.Info("uploading via Azure block blob", "size", stat.Size(), "block_size", plan.SASBlockSize, "concurrency", plan.SASBlockConcurrency)
	return blockBlobUpload(ctx, plan.SASURL, f, stat.Size(), plan.SASBlockSize, plan.SASBlockConcurrency, plan.Reporter)
}
