// Package resilience provides the circuit breaker guarding the generation
// backend and the token-bucket limiter used by the HTTP and ingest paths.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/WessleyAI/wessley-diagnose/pkg/fn"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // rejecting calls
	StateHalfOpen              // letting trial calls through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of trial calls allowed while half-open.
	HalfOpenMax int
	// IsFailure classifies errors. nil counts every error; errors for which
	// it returns false are passed through without touching the counters.
	IsFailure func(error) bool
	// OnStateChange is called with the mutex released after a transition.
	OnStateChange func(from, to State)
}

// DefaultBreakerOpts are used for zero fields.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// IgnoreContextErrors is an IsFailure that does not blame the backend for
// the caller giving up.
func IgnoreContextErrors(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	mu            sync.Mutex
	opts          BreakerOpts
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCount int
	now           func() time.Time
}

// NewBreaker creates a Breaker, filling zero options from DefaultBreakerOpts.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	from := b.state
	st := b.currentState()
	b.mu.Unlock()
	b.notify(from, st)
	return st
}

// currentState moves open to half-open once the timeout has elapsed. Must hold mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.halfOpenCount = 0
	}
	return b.state
}

// Call runs f unless the breaker is open.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err)
	return err
}

// CallResult is Call for functions returning an fn.Result.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.acquire(); err != nil {
		return fn.Err[T](err)
	}
	r := f(ctx)
	b.record(r.Error())
	return r
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	from := b.state
	st := b.currentState()
	var err error
	switch st {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenCount >= b.opts.HalfOpenMax {
			err = ErrCircuitOpen
		} else {
			b.halfOpenCount++
		}
	}
	b.mu.Unlock()
	b.notify(from, st)
	return err
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case err == nil:
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.failures = 0
	case b.opts.IsFailure != nil && !b.opts.IsFailure(err):
		if b.state == StateHalfOpen {
			b.halfOpenCount--
		}
	default:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.halfOpenCount = 0
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}
