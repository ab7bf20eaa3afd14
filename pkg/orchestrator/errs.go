// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, stable and surfaced to the user, per spec.md §7.
var (
	ErrNoMemorySource   = errors.New("orchestrator: no memory source available")
	ErrLockdownSuspected = errors.New("orchestrator: kernel lockdown suspected")
	ErrNoRamFound       = errors.New("orchestrator: memory map contains no RAM ranges")
	ErrDiskCapExceeded  = errors.New("orchestrator: planned output exceeds configured disk cap")
	ErrIoError          = errors.New("orchestrator: I/O error")
	ErrUnsupportedFormat = errors.New("orchestrator: unrecognized image format")
	ErrUploadFailed     = errors.New("orchestrator: upload failed")
	ErrInvalidArgument  = errors.New("orchestrator: invalid argument")
)

// acqError wraps a sentinel kind with the underlying cause and the process
// exit code spec.md §6 assigns to it.
type acqError struct {
	kind     error
	cause    error
	exitCode int
}

func (e *acqError) Error() string {
	if e.cause != nil && e.cause != e.kind {
		return fmt.Sprintf("%v: %v", e.kind, e.cause)
	}
	return e.kind.Error()
}

func (e *acqError) Unwrap() error {
	return e.kind
}

// ExitCode reports the process exit code cmd/limeacquire should use for
// this error, per spec.md §6: 0 success, 1 generic failure, 2 lockdown
// suspected, 3 upload failed after retries, 4 disk cap exceeded.
func (e *acqError) ExitCode() int {
	return e.exitCode
}

func wrap(kind error, cause error) error {
	code := 1
	switch kind {
	case ErrLockdownSuspected:
		code = 2
	case ErrUploadFailed:
		code = 3
	case ErrDiskCapExceeded:
		code = 4
	}
	return &acqError{kind: kind, cause: cause, exitCode: code}
}

// ExitCode extracts the process exit code from err, defaulting to 1 for any
// error that didn't originate from this package (still a generic failure
// per spec.md §6) and 0 for a nil err.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ae *acqError
	if errors.As(err, &ae) {
		return ae.ExitCode()
	}
	return 1
}
