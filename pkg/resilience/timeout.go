// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"time"

	"github.com/jllopis/swarm/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables it.
	Duration time.Duration

	// Operation names the guarded call in the timeout error context.
	Operation string
}

// WithTimeout executes fn with a timeout boundary.
// Returns a recoverable errors.CodeTimeout if the deadline is exceeded.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both result and error.
// fn receives a context carrying the deadline; if it does not honor it, its
// result is discarded once the deadline passes.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, config.contextError(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, config.contextError(ctx)
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return res.value, config.contextError(ctx)
		}
		return res.value, res.err
	}
}

func (config TimeoutConfig) contextError(ctx context.Context) error {
	if ctx.Err() != context.DeadlineExceeded {
		return errors.New(errors.CodeContextLost, "operation canceled", ctx.Err()).
			WithContext("operation", config.Operation)
	}
	return errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
		WithContext("timeout", config.Duration.String()).
		WithContext("operation", config.Operation).
		WithRecoverable(true)
}
