package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay computes the sleep before attempt n (1-based). Exponential policies
// double the base delay each attempt up to the policy cap; jitter of at most
// 10% is added after the cap so concurrent retries spread out.
func Delay(policy Policy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := policy.BaseDelay
	if policy.Exponential {
		delay = time.Duration(float64(policy.BaseDelay) * math.Pow(2, float64(attempt-1)))
	}
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	return delay + jitter
}

// Do runs op until it succeeds or its classified policy is exhausted. The
// error is reclassified on every failure because the category can change
// between attempts (a storage error on attempt one, a timeout on attempt
// two). onRetry is invoked before each sleep with the upcoming attempt
// number and the failure that triggered it; it is where callers persist
// retry bookkeeping. Returns the last error and the number of retries used.
func Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error, c Classification)) (int, error) {
	var lastErr error
	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			return retries, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return retries, nil
		}

		c := Classify(lastErr)
		if !c.Policy.Retryable || retries >= c.Policy.MaxRetries {
			return retries, lastErr
		}

		retries++
		if onRetry != nil {
			onRetry(retries, lastErr, c)
		}

		select {
		case <-ctx.Done():
			return retries, ctx.Err()
		case <-time.After(Delay(c.Policy, retries)):
		}
	}
}
