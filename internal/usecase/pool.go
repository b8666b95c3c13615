package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// DefaultWorkers is the fan-out used when a caller does not configure
// its own worker count.
const DefaultWorkers = 6

// UnitResult is the outcome of one unit of parallel work. A unit
// failure is captured here and never aborts its siblings.
type UnitResult[R any] struct {
	Value R
	Err   error
}

// ParallelMap runs fn over items with a bounded worker pool and
// returns one result per item, in input order regardless of worker
// count or completion order. A panicking unit is reported as that
// unit's error. Only context cancellation stops the batch early;
// already-dispatched units still drain into the result slice.
func ParallelMap[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) (R, error)) []UnitResult[R] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]UnitResult[R], len(items))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i].Value, results[i].Err = runUnit(ctx, items[i], fn)
			}
		}()
	}

	for i := range items {
		select {
		case indices <- i:
		case <-ctx.Done():
			close(indices)
			wg.Wait()
			// Everything at or past i was never dispatched.
			for j := i; j < len(results); j++ {
				results[j].Err = ctx.Err()
			}
			return results
		}
	}
	close(indices)
	wg.Wait()
	return results
}

func runUnit[T, R any](ctx context.Context, item T, fn func(ctx context.Context, item T) (R, error)) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}
