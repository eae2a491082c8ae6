package async

import (
	"context"
	"fmt"
)

// Future is the pending result of a function started with Go.
type Future[T any] struct {
	result T
	err    error
	done   chan struct{}
}

// Go runs fn in its own goroutine. A panic in fn is converted into an error
// wrapping ErrPanic.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()

	return f
}

// Await blocks until the function returns or ctx is done. Abandoning the
// wait does not stop the function; cancel the context passed to Go for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the function has returned.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// WaitAll awaits every future in order and returns the first error.
func WaitAll[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	results := make([]T, len(futures))
	for i, f := range futures {
		res, err := f.Await(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}
