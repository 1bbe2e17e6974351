// Package bulk runs independent items through a bounded worker pool and
// collects per-item failures.
package bulk

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

// Operation represents a bulk operation configuration
type Operation struct {
	Jobs            int
	ContinueOnError bool
	Ordered         bool
	// Progress receives one status line per finished item. Nil is silent.
	Progress io.Writer
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Index int
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item. index is the item's
// position in the input, so callers can write results into a pre-sized slice.
type ItemFunc func(index int, item string) error

// Execute runs the bulk operation on the given items. Items not started
// because of cancellation or an earlier failure count as skipped.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{
		TotalItems: len(items),
	}

	if len(items) == 0 {
		return result
	}

	// Auto-detect CPU count if jobs == 0
	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(items) {
		jobs = len(items)
	}

	if op.Ordered || jobs == 1 {
		op.executeSequential(ctx, items, fn, result)
	} else {
		op.executeParallel(ctx, items, fn, jobs, result)
	}

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Index < result.Errors[j].Index
	})
	result.Skipped = result.TotalItems - result.Succeeded - result.Failed
	return result
}

// executeSequential processes items one by one
func (op *Operation) executeSequential(ctx context.Context, items []string, fn ItemFunc, result *Result) {
	for i, item := range items {
		if ctx.Err() != nil {
			return
		}

		if err := fn(i, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Index: i, Item: item, Error: err})
			op.report(item, err)
			if !op.ContinueOnError {
				return
			}
			continue
		}
		result.Succeeded++
		op.report(item, nil)
	}
}

// executeParallel processes items in parallel using a worker pool
func (op *Operation) executeParallel(ctx context.Context, items []string, fn ItemFunc, workers int, result *Result) {
	workQueue := make(chan int, len(items))
	for i := range items {
		workQueue <- i
	}
	close(workQueue)

	var (
		succeeded  int32
		failed     int32
		errorsMux  sync.Mutex
		stopSignal int32 // 0 = continue, 1 = stop
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				if ctx.Err() != nil || (!op.ContinueOnError && atomic.LoadInt32(&stopSignal) == 1) {
					return
				}

				err := fn(i, items[i])
				if err != nil {
					atomic.AddInt32(&failed, 1)
					errorsMux.Lock()
					result.Errors = append(result.Errors, ItemError{Index: i, Item: items[i], Error: err})
					errorsMux.Unlock()

					if !op.ContinueOnError {
						atomic.StoreInt32(&stopSignal, 1)
					}
				} else {
					atomic.AddInt32(&succeeded, 1)
				}
				op.report(items[i], err)
			}
		}()
	}

	wg.Wait()

	result.Succeeded = int(succeeded)
	result.Failed = int(failed)
}

var progressMu sync.Mutex

func (op *Operation) report(item string, err error) {
	if op.Progress == nil {
		return
	}
	progressMu.Lock()
	defer progressMu.Unlock()
	if err != nil {
		fmt.Fprintf(op.Progress, "%s: error: %v\n", item, err)
		return
	}
	fmt.Fprintf(op.Progress, "%s: success\n", item)
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}

// PrintSummary prints a human-readable summary of the result
func (r *Result) PrintSummary(w io.Writer) {
	if r.Failed == 0 && r.Skipped == 0 {
		fmt.Fprintf(w, "\n✓ All %d operations succeeded\n", r.TotalItems)
	} else if r.Succeeded == 0 {
		fmt.Fprintf(w, "\n✗ All %d operations failed\n", r.TotalItems)
	} else {
		fmt.Fprintf(w, "\n⚠ Partial success: %d succeeded, %d failed, %d skipped (out of %d)\n",
			r.Succeeded, r.Failed, r.Skipped, r.TotalItems)
	}

	if len(r.Errors) > 0 && len(r.Errors) <= 10 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
		}
	} else if len(r.Errors) > 10 {
		fmt.Fprintf(w, "\nShowing first 10 errors (of %d):\n", len(r.Errors))
		for _, e := range r.Errors[:10] {
			fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
		}
	}
}
