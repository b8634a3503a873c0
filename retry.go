// Copyright 2026 The go-pixtendl Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pixtendl

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig shapes how a failed frame exchange is reattempted. There
// is only one operation on the wire, so one config covers the whole
// transport.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (0 = no retry).
	MaxAttempts int
	// InitialBackoff is the pause before the first reattempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the growing pause.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the pause after every failed attempt.
	BackoffMultiplier float64
	// Jitter randomizes each pause by up to this fraction of itself.
	Jitter float64
	// RetryTimeout bounds the attempts as a whole.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns a default retry configuration. The
// backoff floor sits above the board's 30ms cycle spacing so a retried
// exchange never arrives inside the firmware's processing window of
// the failed one.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    30 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// RetryableFunc is the operation RetryWithConfig drives, typically one
// frame exchange.
type RetryableFunc func() error

// RetryWithConfig runs retryFunc until it succeeds, fails permanently,
// or the attempt budget runs out. Errors that IsRetryable rejects are
// returned as-is on the spot; once an attempt has failed, context
// expiry reports that last failure rather than a bare context error.
func RetryWithConfig(ctx context.Context, config *RetryConfig, retryFunc RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		return retryFunc()
	}
	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var lastErr error
	backoff := config.InitialBackoff
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry context cancelled: %w", ctx.Err())
		}

		err := retryFunc()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == config.MaxAttempts-1 {
			break
		}
		pause := backoff
		if config.Jitter > 0 {
			pause += time.Duration(rand.Float64() * config.Jitter * float64(pause))
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*config.BackoffMultiplier), config.MaxBackoff)
	}
	return lastErr
}
