package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable decides whether an error is worth another attempt.
	// nil retries every error.
	Retryable func(error) bool
}

// DefaultRetry suits calls to local services.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

// Retry calls f until it succeeds, MaxAttempts is reached, Retryable rejects
// the error, or ctx is done. Waits grow exponentially up to MaxWait.
// MaxAttempts < 1 is treated as 1.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	wait := opts.InitialWait

	var r Result[T]
	for attempt := 1; ; attempt++ {
		r = f(ctx)
		if !r.IsErr() || attempt >= attempts {
			return r
		}
		if opts.Retryable != nil && !opts.Retryable(r.err) {
			return r
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Err[T](ctx.Err())
		case <-timer.C:
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

// RetryStage wraps a Stage with Retry.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
