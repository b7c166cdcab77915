package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// backoff returns the delay before the given retry attempt: the base delay
// doubled per attempt, capped at 30s, with +/-25% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	attempt = min(attempt, 30)
	d := base * time.Duration(1<<uint(attempt-1))
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	return d + jitter
}

// retry calls f until it succeeds, maxRetries is exhausted, or ctx is done.
func retry[T any](ctx context.Context, maxRetries int, base time.Duration, f func(ctx context.Context) (T, error)) (v T, err error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff(base, attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return v, ctx.Err()
			case <-t.C:
			}
		}
		v, err = f(ctx)
		if err == nil || ctx.Err() != nil {
			return v, err
		}
	}
	return v, err
}
