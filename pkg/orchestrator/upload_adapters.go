// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/go-lime/limeacquire/pkg/upload"
)

// putUpload delegates to upload.Put; kept as its own function so run.go's
// signature doesn't change if the upload package's Put signature does.
func putUpload(ctx context.Context, client *http.Client, url string, f *os.File, size int64, reporter upload.Reporter) error {
	return upload.Put(ctx, client, url, f, size, reporter)
}

// blockBlobUpload adapts the local output file to upload.BlockSource and
// delegates to upload.UploadBlockBlob.
func blockBlobUpload(ctx context.Context, sasURL string, f *os.File, size, blockSize int64, concurrency int, reporter upload.Reporter) error {
	src := fileBlockSource{f: f}
	return upload.UploadBlockBlob(ctx, sasURL, src, size, upload.BlockBlobOptions{
		BlockSize:   blockSize,
		Concurrency: concurrency,
	}, reporter)
}

// fileBlockSource adapts an *os.File to upload.BlockSource via ReadAt,
// letting the upload engine re-read a block from disk on retry without
// holding the whole file in memory.
type fileBlockSource struct {
	f *os.File
}

func (s fileBlockSource) ReadBlock(ctx context.Context, offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
