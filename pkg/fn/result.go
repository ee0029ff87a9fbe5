// Package fn holds small generic helpers for composing pipeline stages:
// a Result type, traced stages, retry with backoff and bounded fan-out.
package fn

// Result is the outcome of a Stage: a value or an error, never both.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps a non-nil error.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// FromPair builds a Result from a (value, error) return.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Result[T]{err: err}
	}
	return Result[T]{val: v}
}

// IsErr reports whether the result holds an error.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Error returns the error, or nil.
func (r Result[T]) Error() error { return r.err }
