package syncer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"quizkeeper/internal/domain"
)

// withRetry runs op with exponential backoff, up to maxAttempts total
// attempts. Non-retryable failures (expired tokens, forbidden, rate limits)
// abort immediately so the caller can surface them.
func withRetry(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.RandomizationFactor = 0.2

	wrapped := func() error {
		err := op()
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx))
}
