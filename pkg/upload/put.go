// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
)

// Put uploads the entirety of body (size bytes, seekable so a retry can
// rewind it) to url in a single HTTP PUT request, retrying on 5xx
// responses or connection errors with exponential backoff. 4xx responses
// are not retried.
//
// client is supplied by the caller: the specific HTTP client/transport is
// an external collaborator per the acquisition tool's scope, not something
// this package selects.
func Put(ctx context.Context, client *http.Client, url string, body io.ReadSeeker, size int64, reporter Reporter) error {
	b := newBackoff()

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("upload: rewinding body for attempt %d: %w", attempt, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
		if err != nil {
			return fmt.Errorf("upload: building request: %w", err)
		}
		req.ContentLength = size

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			lastStatus = 0
			if attempt == MaxAttempts || !sleepBackoff(ctx, b, reporter, attempt) {
				break
			}
			continue
		}

		status := resp.StatusCode
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if status >= 200 && status < 300 {
			if reporter != nil {
				reporter.BytesAcked(uint64(size))
			}
			return nil
		}

		lastErr = fmt.Errorf("unexpected status %d", status)
		lastStatus = status

		if status >= 400 && status < 500 {
			// Non-retryable.
			break
		}

		if attempt == MaxAttempts || !sleepBackoff(ctx, b, reporter, attempt) {
			break
		}
	}

	return &FailedError{LastErr: lastErr, LastStatus: lastStatus}
}

// sleepBackoff waits the next jittered backoff delay, reporting the retry
// and honoring ctx cancellation. It returns false if ctx was canceled
// before the sleep completed.
//
// blockIndex is reported as -1: a generic PUT has no block concept, so
// there's no real index to surface through Reporter.Retry.
func sleepBackoff(ctx context.Context, b *backoff.Backoff, reporter Reporter, attempt int) bool {
	if reporter != nil {
		reporter.Retry(-1, attempt)
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(nextDelay(b)):
		return true
	}
}
