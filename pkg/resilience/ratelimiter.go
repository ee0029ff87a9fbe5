package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
)

// ErrRateLimited is returned when no token is available.
var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures a token bucket.
type LimiterOpts struct {
	Rate  float64 // tokens per second, <= 0 means unlimited
	Burst int     // bucket size, at least 1
}

// Limiter is a token bucket over golang.org/x/time/rate. It starts full.
type Limiter struct {
	rl  *rate.Limiter
	now func() time.Time
}

func NewLimiter(opts LimiterOpts) *Limiter {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Limiter{rl: rate.NewLimiter(limit, max(opts.Burst, 1)), now: time.Now}
}

// Allow takes a token without blocking.
func (l *Limiter) Allow() bool { return l.rl.AllowN(l.now(), 1) }

// Wait blocks for a token or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error { return l.rl.Wait(ctx) }

// Call runs f only if a token is available.
func (l *Limiter) Call(ctx context.Context, f func(context.Context) error) error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return f(ctx)
}

// LimiterStageWait delays stage until l grants a token. A nil l passes
// stage through unchanged.
func LimiterStageWait[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	if l == nil {
		return stage
	}
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}
