// Package worker runs work off the calling goroutine.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result carries the outcome of a background call.
type Result[T any] struct {
	Value T
	Err   error
}

// Run calls fn on a new goroutine and delivers its result on the returned
// channel, which receives exactly one value and is then closed. A panic in
// fn is reported as an error.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		var res Result[T]
		defer func() {
			if r := recover(); r != nil {
				res = Result[T]{Err: fmt.Errorf("worker panic: %v", r)}
			}
			out <- res
		}()
		if err := ctx.Err(); err != nil {
			res.Err = err
			return
		}
		res.Value, res.Err = fn(ctx)
	}()
	return out
}

// Map applies fn to every item with at most limit calls in flight. Results
// keep input order. The first error cancels the remaining calls and is
// returned.
func Map[In, Out any](ctx context.Context, limit int, items []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range items {
		item := items[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := fn(gctx, item)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
