// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-blob-go/azblob"
)

// BlockSource supplies the bytes for one upload block on demand, letting
// the engine re-read a block from disk on retry without holding every
// block in memory at once.
type BlockSource interface {
	// ReadBlock returns the bytes for the block at the given byte offset
	// and length. It must be safe to call more than once for the same
	// offset (a retry rewinds and re-reads).
	ReadBlock(ctx context.Context, offset int64, length int) ([]byte, error)
}

// BlockBlobOptions configures an Azure block blob upload.
type BlockBlobOptions struct {
	// BlockSize is the size of each staged block, in bytes. Azure caps a
	// block blob at 50,000 blocks, so BlockSize effectively bounds the
	// maximum file size this call can upload.
	BlockSize int64
	// Concurrency is the number of blocks staged in parallel.
	Concurrency int
}

const (
	DefaultBlockSize   = 100 << 20 // 100 MiB
	DefaultConcurrency = 10
)

func (o BlockBlobOptions) withDefaults() BlockBlobOptions {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// blockID renders the monotonic block index as a fixed-width decimal
// string, base64-encoded as azblob's block ID type requires. Fixed width
// keeps every id the same length; the base64 strings do not sort in index
// order in general, so CommitBlockList is given the ids in index order.
func blockID(index int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%020d", index)))
}

// UploadBlockBlob splits size bytes read from src into fixed-size blocks,
// stages them to sasURL with bounded worker-pool concurrency (each block
// retried independently with the same exponential backoff as Put), and
// commits the block list in ascending index order once every block is
// acked. Any block that exhausts its retries aborts the whole upload with
// UploadFailed; no commit is issued in that case.
func UploadBlockBlob(ctx context.Context, sasURL string, src BlockSource, size int64, opts BlockBlobOptions, reporter Reporter) error {
	opts = opts.withDefaults()

	numBlocks := int((size + opts.BlockSize - 1) / opts.BlockSize)
	if size == 0 {
		numBlocks = 1 // still stage one empty block so the blob exists.
	}
	if numBlocks > maxBlocks {
		return fmt.Errorf("upload: %d blocks at %d bytes exceeds the %d block blob limit: %w", numBlocks, opts.BlockSize, maxBlocks, ErrUploadFailed)
	}

	u, err := url.Parse(sasURL)
	if err != nil {
		return fmt.Errorf("upload: parsing destination URL: %w", err)
	}
	p := azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{
		Log: pipeline.LogOptions{},
	})
	blobURL := azblob.NewBlockBlobURL(*u, p)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ids := make([]string, numBlocks)

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	var firstErrOnce sync.Once
	var firstErr error

	for i := 0; i < numBlocks; i++ {
		i := i
		offset := int64(i) * opts.BlockSize
		length := opts.BlockSize
		if remaining := size - offset; length > remaining {
			length = remaining
		}
		if length < 0 {
			length = 0
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			id := blockID(i)
			ids[i] = id

			if reporter != nil {
				reporter.BytesEnqueued(uint64(length))
			}

			err := stageBlockWithRetry(ctx, &blobURL, id, src, offset, int(length), reporter, i)
			if err != nil {
				firstErrOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			if reporter != nil {
				reporter.BytesAcked(uint64(length))
			}
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return &FailedError{LastErr: firstErr}
	}

	// ids[i] holds blockID(i), so ids is already in ascending index order.
	// It is committed as is: base64 does not preserve the lexical order of
	// the decimal strings (blockID(400) sorts before blockID(0)).
	sortedIDs := ids

	commitCtx := context.Background()
	if ctx.Err() == nil {
		commitCtx = ctx
	}
	_, err = blobURL.CommitBlockList(commitCtx, sortedIDs, azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.AccessTierNone, nil, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return &FailedError{LastErr: fmt.Errorf("committing block list: %w", err)}
	}
	return nil
}

func stageBlockWithRetry(ctx context.Context, blobURL *azblob.BlockBlobURL, id string, src BlockSource, offset int64, length int, reporter Reporter, blockIndex int) error {
	b := newBackoff()

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := src.ReadBlock(ctx, offset, length)
		if err == nil {
			_, err = blobURL.StageBlock(ctx, id, newReadSeekCloser(data), azblob.LeaseAccessConditions{}, nil, azblob.ClientProvidedKeyOptions{})
		}
		if err == nil {
			return nil
		}

		if attempt == MaxAttempts {
			return fmt.Errorf("block %d: %w", blockIndex, err)
		}
		if reporter != nil {
			reporter.Retry(blockIndex, attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextDelay(b)):
		}
	}
	return nil // unreachable
}

// readSeekCloser adapts an in-memory byte slice to the io.ReadSeekCloser
// azblob's StageBlock body parameter requires.
type readSeekCloser struct {
	*io.SectionReader
}

func (readSeekCloser) Close() error { return nil }

func newReadSeekCloser(data []byte) io.ReadSeekCloser {
	return readSeekCloser{io.NewSectionReader(byteReaderAt(data), 0, int64(len(data)))}
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
