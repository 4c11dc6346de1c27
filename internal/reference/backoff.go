// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"context"
	"time"
)

// retryDelays implements spec.md §4.A's fixed 1s/2s/4s exponential-backoff
// schedule, generalized from the jitter idiom in
// internal/collector/collector.go (addJitter) into a plain retry loop: this
// contract calls for exact delays, not jittered ones.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// perCallTimeout bounds every individual outbound attempt.
const perCallTimeout = 5 * time.Second

// withRetry calls fn up to len(retryDelays)+1 times, sleeping retryDelays[i]
// between attempt i and i+1. It gives up and returns the last error once the
// schedule is exhausted, or immediately if ctx is canceled.
func withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
		lastErr = fn(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt >= len(retryDelays) {
			return lastErr
		}
		select {
		case <-time.After(retryDelays[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
