// Package race runs competing sources and settles on the first one to
// finish.
package race

import (
	"context"
	"errors"
	"time"
)

// ErrNoSources is returned by First when it is given nothing to run.
var ErrNoSources = errors.New("race: no sources")

// Source produces a result or an error. It must return promptly once ctx is
// done.
type Source[T any] func(ctx context.Context) (T, error)

type result[T any] struct {
	v   T
	err error
}

// First runs every source concurrently and returns the result of the first
// one to settle, whether it succeeded or failed. The context passed to the
// sources is canceled as soon as First returns, so losers observe
// cancellation and tear down their own resources. Losers are not awaited.
//
// If ctx is done before any source settles, ctx.Err() is returned.
func First[T any](ctx context.Context, sources ...Source[T]) (T, error) {
	var zero T
	if len(sources) == 0 {
		return zero, ErrNoSources
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so losers never block on send after First has returned.
	results := make(chan result[T], len(sources))
	for _, src := range sources {
		go func(src Source[T]) {
			v, err := src(ctx)
			results <- result[T]{v, err}
		}(src)
	}

	select {
	case r := <-results:
		return r.v, r.err
	case <-ctx.Done():
		// A source may have settled at the same instant.
		select {
		case r := <-results:
			return r.v, r.err
		default:
		}
		return zero, ctx.Err()
	}
}

// After is a source that fails with err once d has elapsed. A non-positive
// d fires immediately. The timer is stopped when ctx is done.
func After[T any](d time.Duration, err error) Source[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return zero, err
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
