// Package embed defines the query embedding contract and a guard that
// enforces the engine's requirements on any embedding backend.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
)

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

var (
	ErrEmptyText = errors.New("empty text")
	ErrDimension = errors.New("dimension mismatch")
)

// Error reports an embedding failure. It matches domain.ErrEmbedding.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("embed: %v", e.Err) }

func (e *Error) Unwrap() []error { return []error{domain.ErrEmbedding, e.Err} }

// DefaultTimeout bounds a single embedding call.
const DefaultTimeout = 5 * time.Second

// GuardOpts configures a Guard.
type GuardOpts struct {
	// Dimensions is the expected vector length. Zero disables the check.
	Dimensions int
	Timeout    time.Duration
}

// Guard wraps a backend with input, timeout and dimension checks.
// It never retries and never caches.
type Guard struct {
	backend Embedder
	opts    GuardOpts
}

// NewGuard wraps backend.
func NewGuard(backend Embedder, opts GuardOpts) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Guard{backend: backend, opts: opts}
}

// Dimensions returns the configured vector length.
func (g *Guard) Dimensions() int { return g.opts.Dimensions }

// Embed returns the vector for text or an *Error.
func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Err: ErrEmptyText}
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	vec, err := g.backend.Embed(ctx, text)
	if err != nil {
		return nil, &Error{Err: err}
	}
	if len(vec) == 0 || (g.opts.Dimensions > 0 && len(vec) != g.opts.Dimensions) {
		return nil, &Error{Err: fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), g.opts.Dimensions)}
	}
	return vec, nil
}
