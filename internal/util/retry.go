// Package util provides shared utility functions for agentcfg.
package util

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"agentcfg/internal/common"
)

// LockRetryOptions polls at a fixed delay while the workspace lock is
// contended. Any other error stops immediately.
func LockRetryOptions(ctx context.Context, attempts int, delay time.Duration) []retry.Option {
	if attempts < 1 {
		attempts = 1
	}
	return []retry.Option{
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsLockContended),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

// Retry runs fn until it succeeds or opts give up.
func Retry(ctx context.Context, fn func() error, opts ...retry.Option) error {
	return retry.Do(fn, append([]retry.Option{retry.Context(ctx)}, opts...)...)
}

// IsLockContended returns true if the error means another process holds the lock.
func IsLockContended(err error) bool {
	return err != nil && errors.Is(err, common.ErrLocked)
}
