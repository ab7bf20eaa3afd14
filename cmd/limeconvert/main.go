// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command limeconvert rewrites a LiME image from one format variant to
// another (raw <-> compressed), reusing the same encode/decode pair
// limeacquire uses for its own output.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-lime/limeacquire/pkg/lime"
)

func main() {
	var sourceFormat, format string

	root := &cobra.Command{
		Use:   "limeconvert <input> <output>",
		Short: "Convert a LiME image between raw and compressed formats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], args[1], sourceFormat, format)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&sourceFormat, "source-format", "", "override input format autodetection (lime, lime_compressed)")
	root.Flags().StringVar(&format, "format", "lime", "output format (lime, lime_compressed)")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runConvert(inputPath, outputPath, sourceFormat, format string) error {
	outFormat, err := parseFormat(format)
	if err != nil {
		return fmt.Errorf("--format: %w", err)
	}

	var decodeOpts lime.DecodeOptions
	if sourceFormat != "" {
		inFormat, err := parseFormat(sourceFormat)
		if err != nil {
			return fmt.Errorf("--source-format: %w", err)
		}
		decodeOpts.Format = &inFormat
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	var ranges []lime.Range
	var payloads [][]byte
	err = lime.Decode(in, decodeOpts, func(r lime.Range, payload []byte) error {
		ranges = append(ranges, r)
		payloads = append(payloads, append([]byte(nil), payload...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}

	src := &memorySource{ranges: ranges, payloads: payloads}
	return lime.Encode(out, ranges, src, lime.EncodeOptions{Format: outFormat, PageSize: 4096})
}

func parseFormat(s string) (lime.Format, error) {
	switch s {
	case "lime":
		return lime.Raw, nil
	case "lime_compressed":
		return lime.Compressed, nil
	default:
		return 0, fmt.Errorf("unrecognized format %q: must be lime or lime_compressed", s)
	}
}

// memorySource replays the decoded ranges back to lime.Encode as a
// PhysReader, letting convert reuse the same Encode path acquisition uses
// rather than a bespoke rewrite routine.
type memorySource struct {
	ranges   []lime.Range
	payloads [][]byte
}

func (s *memorySource) Read(physAddr uint64, buf []byte) (int, error) {
	for i, r := range s.ranges {
		if physAddr < r.Start || physAddr >= r.End {
			continue
		}
		off := physAddr - r.Start
		payload := s.payloads[i]
		if off >= uint64(len(payload)) {
			return 0, nil
		}
		return copy(buf, payload[off:]), nil
	}
	return 0, nil
}
