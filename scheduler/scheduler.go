package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/mgkmeans/model"
)

var (
	// ErrWorkerUnavailable is returned when a task targets a worker that is
	// unknown or down.
	ErrWorkerUnavailable = errors.New("worker unavailable")
	// ErrBarrierTimeout is returned for tasks that did not settle before the
	// fan-in deadline.
	ErrBarrierTimeout = errors.New("barrier timeout")
	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("scheduler pool closed")
	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")
)

// TaskFunc is the body of a task. It receives the worker it runs on.
type TaskFunc func(ctx context.Context, worker model.WorkerID) (any, error)

// Task is a unit of work bound to one worker.
type Task struct {
	Worker model.WorkerID
	// Name is used in logs and errors.
	Name string
	Fn   TaskFunc
}

// Scheduler submits tasks to workers.
type Scheduler interface {
	// Submit enqueues t on t.Worker and returns without waiting for it to run.
	Submit(ctx context.Context, t Task) (*Future, error)
	// Ping reports whether worker is reachable.
	Ping(ctx context.Context, worker model.WorkerID) error
	// Workers lists the known workers.
	Workers() []model.WorkerID
}

// Future is the handle of a submitted task.
type Future struct {
	worker model.WorkerID
	name   string

	done  chan struct{}
	value any
	err   error
}

// NewFuture creates an unsettled future. Scheduler implementations settle it
// exactly once with Settle.
func NewFuture(worker model.WorkerID, name string) *Future {
	return &Future{worker: worker, name: name, done: make(chan struct{})}
}

// Settle records the outcome and wakes waiters. It must be called once.
func (f *Future) Settle(value any, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Worker returns the worker the task was bound to.
func (f *Future) Worker() model.WorkerID { return f.worker }

// Name returns the task name.
func (f *Future) Name() string { return f.name }

// Done is closed once the task has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Settled reports whether the task has finished.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome of a settled task, or (nil, nil) while it is
// still running.
func (f *Future) Result() (any, error) {
	if !f.Settled() {
		return nil, nil
	}
	return f.value, f.err
}

func (f *Future) String() string {
	return fmt.Sprintf("Future(%s@%s)", f.name, f.worker)
}

// WaitAll waits for every future and returns their errors, index-aligned with
// futures (nil for success).
//
// A positive timeout bounds the whole wait. Futures still unsettled at the
// deadline get an error wrapping ErrBarrierTimeout. If ctx ends first, the
// unsettled ones get its cause.
func WaitAll(ctx context.Context, futures []*Future, timeout time.Duration) []error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	errs := make([]error, len(futures))
	for i, f := range futures {
		select {
		case <-f.done:
			errs[i] = f.err
			continue
		case <-deadline:
			return expire(futures, errs, i, fmt.Errorf("%w after %v", ErrBarrierTimeout, timeout))
		case <-ctx.Done():
			return expire(futures, errs, i, context.Cause(ctx))
		}
	}
	return errs
}

// expire fills errs from index i on, keeping outcomes of futures that did
// settle in the meantime.
func expire(futures []*Future, errs []error, i int, cause error) []error {
	for ; i < len(futures); i++ {
		f := futures[i]
		if f.Settled() {
			errs[i] = f.err
			continue
		}
		errs[i] = fmt.Errorf("task %s on worker %s: %w", f.name, f.worker, cause)
	}
	return errs
}
