package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Batch tracks a set of dispatched tasks.
type Batch struct {
	mu      sync.Mutex
	pending int
	errs    *multierror.Error
	done    chan struct{}
}

// Dispatch starts all tasks concurrently and returns immediately. A failing
// task never affects the others.
//
// Example:
//
//	batch := async.Dispatch(ctx, tasks)
//	// ... poll for the outcome elsewhere ...
//	if err := batch.Err(); err != nil {
//	    log.Warn().Err(err).Msg("some deletions failed")
//	}
func Dispatch(ctx context.Context, tasks []Task) *Batch {
	b := &Batch{pending: len(tasks), done: make(chan struct{})}
	if len(tasks) == 0 {
		close(b.done)
		return b
	}

	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			b.finish(task.Name, err)
		}()
	}
	return b
}

func (b *Batch) finish(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.errs = multierror.Append(b.errs, fmt.Errorf("%s: %w", name, err))
	}
	b.pending--
	if b.pending == 0 {
		close(b.done)
	}
}

// Pending returns the number of tasks that have not returned yet.
func (b *Batch) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Err returns the errors reported so far, or nil.
func (b *Batch) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errs.ErrorOrNil()
}

// Wait blocks until every task returned or ctx is done, then returns Err.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.Err()
}
