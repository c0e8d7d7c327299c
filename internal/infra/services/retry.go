package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryRequest runs op with a per-attempt deadline and bounded exponential
// backoff. maxRetries counts retries after the first attempt; the surrounding
// ctx cancels the whole sequence, so a hangup aborts an in-flight retry loop.
func retryRequest(ctx context.Context, timeout time.Duration, maxRetries uint64, interval time.Duration, op func(ctx context.Context) error) error {
	attempt := func() error {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return op(cctx)
	}

	policy := backoff.NewExponentialBackOff()
	if interval > 0 {
		policy.InitialInterval = interval
	}

	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
}
