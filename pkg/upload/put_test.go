// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package upload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReporter records what the Reporter interface was told, without
// caring about exact byte counts beyond a final total.
type countingReporter struct {
	acked   uint64
	retries int32
}

func (r *countingReporter) BytesEnqueued(n uint64) {}
func (r *countingReporter) BytesAcked(n uint64)     { atomic.AddUint64(&r.acked, n) }
func (r *countingReporter) Retry(blockIndex, attempt int) {
	atomic.AddInt32(&r.retries, 1)
}

func TestPutSucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello world", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rep := &countingReporter{}
	body := bytes.NewReader([]byte("hello world"))
	err := Put(context.Background(), srv.Client(), srv.URL, body, int64(body.Len()), rep)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), rep.acked)
	assert.Equal(t, int32(0), rep.retries)
}

func TestPutRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		io.Copy(io.Discard, r.Body)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rep := &countingReporter{}
	body := bytes.NewReader([]byte("payload"))

	// Use a short-circuited context timeout budget generous enough for the
	// jittered backoff (base 1s) across two retries.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := Put(ctx, srv.Client(), srv.URL, body, int64(body.Len()), rep)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(2), rep.retries)
}

func TestPutDoesNotRetry4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	rep := &countingReporter{}
	body := bytes.NewReader([]byte("payload"))
	err := Put(context.Background(), srv.Client(), srv.URL, body, int64(body.Len()), rep)
	require.Error(t, err)
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusForbidden, failed.LastStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(0), rep.retries)
}

func TestPutExhaustsRetriesOnPersistent5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rep := &countingReporter{}
	body := bytes.NewReader([]byte("payload"))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	err := Put(ctx, srv.Client(), srv.URL, body, int64(body.Len()), rep)
	require.Error(t, err)
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, http.StatusInternalServerError, failed.LastStatus)
	assert.Equal(t, int32(MaxAttempts), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(MaxAttempts-1), rep.retries)
}

func TestPutCancelsDuringBackoffSleep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rep := &countingReporter{}
	body := bytes.NewReader([]byte("payload"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Put(ctx, srv.Client(), srv.URL, body, int64(body.Len()), rep)
	require.Error(t, err)
}
