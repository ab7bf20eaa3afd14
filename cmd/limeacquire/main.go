// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Command limeacquire acquires the volatile physical memory of the local
// host into a LiME image, optionally compressed, optionally uploaded to a
// generic HTTP PUT endpoint or Azure-style block-blob storage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-lime/limeacquire/pkg/lime"
	"github.com/go-lime/limeacquire/pkg/orchestrator"
	"github.com/go-lime/limeacquire/pkg/source"
	"github.com/go-lime/limeacquire/pkg/upload"
)

type flags struct {
	compress bool
	source   string

	maxDiskUsageMB      int64
	maxDiskUsagePercent float64

	url                 string
	sasURL              string
	sasBlockSizeMiB     int64
	sasBlockConcurrency int

	deleteOnSuccess bool

	verbose  bool
	progress bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "limeacquire <filename>",
		Short: "Acquire physical memory into a LiME image",
		Long: `limeacquire reads the physical memory of the running host through one of
/dev/crash, /proc/kcore, or /dev/mem and writes it as a LiME-format image,
optionally Snappy-compressed and optionally uploaded to remote storage.

No target-side compilation, kernel module loading, or symbol resolution is
performed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAcquire(cmd.Context(), f, args[0])
		},
		SilenceUsage: true,
	}

	root.Flags().BoolVar(&f.compress, "compress", false, "emit compressed LiME (page-level Snappy)")
	root.Flags().StringVar(&f.source, "source", "", "force a memory source (/dev/crash, /proc/kcore, /dev/mem); default probes in that order")
	root.Flags().Int64Var(&f.maxDiskUsageMB, "max-disk-usage", 0, "abort before acquisition if the estimated image size exceeds this many MB (0 = no cap)")
	root.Flags().Float64Var(&f.maxDiskUsagePercent, "max-disk-usage-percentage", 0, "abort before acquisition if the estimated image size exceeds this percentage of the output filesystem's free space (0 = no cap)")
	root.Flags().StringVar(&f.url, "url", "", "generic HTTP PUT upload target")
	root.Flags().StringVar(&f.sasURL, "sas-url", "", "Azure-style block-blob upload target (SAS URL)")
	root.Flags().Int64Var(&f.sasBlockSizeMiB, "sas-block-size", upload.DefaultBlockSize>>20, "block blob block size, in MiB")
	root.Flags().IntVar(&f.sasBlockConcurrency, "sas-block-concurrency", upload.DefaultConcurrency, "block blob worker count")
	root.Flags().BoolVar(&f.deleteOnSuccess, "delete", false, "unlink the local file once upload succeeds")
	root.Flags().BoolVar(&f.verbose, "verbose", false, "enable debug-level logging")
	root.Flags().BoolVar(&f.progress, "progress", false, "print periodic upload progress to stderr")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(orchestrator.ExitCode(err))
	}
}

func runAcquire(ctx context.Context, f flags, outputPath string) error {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if f.url != "" && f.sasURL != "" {
		return fmt.Errorf("%w: --url and --sas-url are mutually exclusive", orchestrator.ErrInvalidArgument)
	}

	plan := orchestrator.Plan{
		OutputPath:          outputPath,
		PageSize:            os.Getpagesize(),
		UploadURL:           f.url,
		SASURL:              f.sasURL,
		SASBlockSize:        f.sasBlockSizeMiB << 20,
		SASBlockConcurrency: f.sasBlockConcurrency,
		DeleteOnSuccess:     f.deleteOnSuccess,
	}
	if f.compress {
		plan.Format = lime.Compressed
	} else {
		plan.Format = lime.Raw
	}

	if f.source != "" {
		kind, err := parseSourceFlag(f.source)
		if err != nil {
			return fmt.Errorf("%w: %v", orchestrator.ErrInvalidArgument, err)
		}
		plan.ForcedSource = &kind
	}

	if f.maxDiskUsageMB > 0 {
		plan.MaxDiskUsageBytes = uint64(f.maxDiskUsageMB) << 20
	} else if f.maxDiskUsagePercent > 0 {
		free, err := freeDiskBytes(outputPath)
		if err != nil {
			log.Warn("could not determine free disk space for --max-disk-usage-percentage; proceeding without a cap", "err", err)
		} else {
			plan.MaxDiskUsageBytes = uint64(float64(free) * f.maxDiskUsagePercent / 100)
		}
	}

	if f.progress {
		plan.Reporter = newStderrReporter(log)
	}

	if !hasSuffixLime(outputPath) {
		log.Debug("output path does not end in .lime; writing to the path as given", "path", outputPath)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return orchestrator.Run(ctx, plan, log)
}

func parseSourceFlag(s string) (source.Kind, error) {
	switch s {
	case "/dev/crash":
		return source.DevCrash, nil
	case "/proc/kcore":
		return source.ProcKcore, nil
	case "/dev/mem":
		return source.DevMem, nil
	default:
		return 0, fmt.Errorf("invalid --source %q: must be one of /dev/crash, /proc/kcore, /dev/mem", s)
	}
}

func hasSuffixLime(path string) bool {
	const suffix = ".lime"
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}
