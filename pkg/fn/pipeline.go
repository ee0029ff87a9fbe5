package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "wessley/pkg/fn"

// Stage is one step of a pipeline: it transforms In to Out within a context.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then composes two stages, short-circuiting on error.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		r := first(ctx, a)
		if r.IsErr() {
			return Err[C](r.err)
		}
		return second(ctx, r.val)
	}
}

// MapStage lifts a pure function into a Stage.
func MapStage[In, Out any](f func(In) Out) Stage[In, Out] {
	return func(_ context.Context, in In) Result[Out] {
		return Ok(f(in))
	}
}

// TryStage lifts a fallible function into a Stage.
func TryStage[In, Out any](f func(context.Context, In) (Out, error)) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return FromPair(f(ctx, in))
	}
}

// TapStage runs a side effect and passes the value through.
func TapStage[T any](f func(context.Context, T)) Stage[T, T] {
	return func(ctx context.Context, t T) Result[T] {
		f(ctx, t)
		return Ok(t)
	}
}

// TracedStage wraps stage in an OTel span named name.
func TracedStage[In, Out any](name string, stage Stage[In, Out], attrs ...attribute.KeyValue) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer(tracerName).Start(ctx, name)
		defer span.End()
		span.SetAttributes(attrs...)
		r := stage(ctx, in)
		if r.IsErr() {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		return r
	}
}
