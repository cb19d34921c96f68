// Package workerpool implements the bounded parallel_for(begin, end, task)
// abstraction spec.md §5 describes: a shared compute pool that independent
// tasks dispatch onto, with cooperative cancellation via context.Context.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool dispatches independent tasks across a bounded number of goroutines.
type Pool struct {
	size int
}

// New creates a Pool with the given concurrency limit. size <= 0 means
// unlimited concurrency (errgroup.SetLimit(-1)).
func New(size int) *Pool {
	return &Pool{size: size}
}

// Task is one unit of work dispatched by ParallelFor, indexed by its
// position in [begin, end).
type Task func(ctx context.Context, i int) error

// ParallelFor runs task(i) for every i in [begin, end), bounded by the
// pool's concurrency limit. It returns the first error encountered; other
// in-flight tasks are cancelled cooperatively via ctx.
func (p *Pool) ParallelFor(ctx context.Context, begin, end int, task Task) error {
	if begin >= end {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if p.size > 0 {
		g.SetLimit(p.size)
	}
	for i := begin; i < end; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return task(gctx, i)
		})
	}
	return g.Wait()
}
