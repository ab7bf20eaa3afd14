// Copyright 2026 The go-lime Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package upload

import (
	"math/rand"
	"time"

	"github.com/jpillora/backoff"
)

// MaxAttempts is the maximum number of tries (the first attempt plus up to
// 7 retries) for a single generic PUT or a single block's StageBlock call.
// The backoff sequence it drives is 1,2,4,8,16,32,64s, the last of which
// is clamped to the 60s cap.
const MaxAttempts = 8

const (
	backoffBase   = time.Second
	backoffFactor = 2.0
	backoffCap    = 60 * time.Second
	jitterFrac    = 0.2 // ±20%
)

// newBackoff returns the exponential schedule (base 1s, factor 2, cap 60s)
// that retry loops advance through. The library's own jitter is disabled
// in favor of the precise ±20% jitter nextDelay applies on top, matching
// the spec's exact schedule rather than the library default.
func newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    backoffBase,
		Max:    backoffCap,
		Factor: backoffFactor,
		Jitter: false,
	}
}

// jitter applies a uniform random multiplier in [1-frac, 1+frac] to d.
func jitter(d time.Duration, frac float64) time.Duration {
	mult := 1 + (rand.Float64()*2-1)*frac
	return time.Duration(float64(d) * mult)
}

// nextDelay advances b and returns the jittered delay for the next retry.
func nextDelay(b *backoff.Backoff) time.Duration {
	return jitter(b.Duration(), jitterFrac)
}
