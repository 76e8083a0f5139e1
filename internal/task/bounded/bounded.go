package bounded

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is a deferred unit of work producing a result or failing.
type Task[T any] func() (T, error)

// PanicError is returned when a task panics. The panic is contained so the
// other workers keep their results.
type PanicError struct {
	Index int
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("task %d panic: %v", e.Index, e.Value) }

// TaskError wraps the first error returned by a task.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %d: %v", e.Index, e.Err) }
func (e *TaskError) Unwrap() error { return e.Err }

// Limit returns the number of workers Run would start for n tasks.
func Limit(n, concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > n {
		concurrency = n
	}
	return concurrency
}

// Run executes tasks with at most concurrency of them in flight and returns
// their results in task order.
//
// An empty task list returns an empty slice immediately. concurrency below 1
// is treated as 1 and values above len(tasks) are clamped.
//
// If a task fails, Run still waits for every in-flight task and returns the
// partially filled results together with the first failure; indices that were
// never claimed keep the zero value.
func Run[T any](tasks []Task[T], concurrency int) ([]T, error) {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	var (
		next    atomic.Int64
		stopped atomic.Bool
		g       errgroup.Group
	)
	n := int64(len(tasks))

	worker := func() error {
		for !stopped.Load() {
			idx := next.Add(1) - 1
			if idx >= n {
				return nil
			}
			res, err := runOne(int(idx), tasks[idx])
			if err != nil {
				stopped.Store(true)
				return err
			}
			results[idx] = res
		}
		return nil
	}

	for i := 0; i < Limit(len(tasks), concurrency); i++ {
		g.Go(worker)
	}
	err := g.Wait()
	return results, err
}

func runOne[T any](idx int, task Task[T]) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Index: idx, Value: r, Stack: string(debug.Stack())}
		}
	}()
	if task == nil {
		return res, &TaskError{Index: idx, Err: fmt.Errorf("nil task")}
	}
	res, err = task()
	if err != nil {
		return res, &TaskError{Index: idx, Err: err}
	}
	return res, nil
}
