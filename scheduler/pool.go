package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/resource"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

// Options configures a Pool.
type Options struct {
	// SlotsPerWorker is how many tasks a worker runs at once. Defaults to 1.
	SlotsPerWorker int64
	// Controller bounds pool-wide concurrency and submission rate. Nil means
	// unlimited. A cap below the number of workers starves collective rounds.
	Controller *resource.Controller
	// Logger receives task lifecycle events. Nil discards.
	Logger *slog.Logger
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Panicked  int64
	Rejected  int64
}

type worker struct {
	id    model.WorkerID
	slots *semaphore.Weighted

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelCauseFunc
	down   bool
}

// lifetime returns the context that ends when the worker goes down.
func (w *worker) lifetime() (context.Context, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx, !w.down
}

// Pool is an in-process Scheduler.
type Pool struct {
	workers []*worker
	byID    map[model.WorkerID]*worker
	rc      *resource.Controller
	logger  *slog.Logger

	inflight conc.WaitGroup
	closeMu  sync.RWMutex
	closed   bool

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
}

var _ Scheduler = (*Pool)(nil)

// NewPool creates a pool with the given workers, all up.
func NewPool(ids []model.WorkerID, optFns ...func(o *Options)) *Pool {
	opts := Options{SlotsPerWorker: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SlotsPerWorker <= 0 {
		opts.SlotsPerWorker = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &Pool{
		byID:   make(map[model.WorkerID]*worker, len(ids)),
		rc:     opts.Controller,
		logger: logger,
	}
	for _, id := range ids {
		if _, ok := p.byID[id]; ok {
			continue
		}
		ctx, cancel := context.WithCancelCause(context.Background())
		w := &worker{id: id, slots: semaphore.NewWeighted(opts.SlotsPerWorker), ctx: ctx, cancel: cancel}
		p.workers = append(p.workers, w)
		p.byID[id] = w
	}
	return p
}

// Workers returns the pool's workers in creation order.
func (p *Pool) Workers() []model.WorkerID {
	ids := make([]model.WorkerID, len(p.workers))
	for i, w := range p.workers {
		ids[i] = w.id
	}
	return ids
}

// Ping reports ErrWorkerUnavailable for unknown or downed workers.
func (p *Pool) Ping(ctx context.Context, id model.WorkerID) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}
	w, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: unknown worker %s", ErrWorkerUnavailable, id)
	}
	if _, up := w.lifetime(); !up {
		return fmt.Errorf("%w: worker %s is down", ErrWorkerUnavailable, id)
	}
	return nil
}

// Submit starts t on its worker. It waits only for submission pacing, never
// for execution.
func (p *Pool) Submit(ctx context.Context, t Task) (*Future, error) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		p.rejected.Add(1)
		return nil, ErrPoolClosed
	}
	if err := context.Cause(ctx); err != nil {
		p.rejected.Add(1)
		return nil, err
	}
	if t.Fn == nil {
		p.rejected.Add(1)
		return nil, fmt.Errorf("task %s has no body", t.Name)
	}
	w, ok := p.byID[t.Worker]
	if !ok {
		p.rejected.Add(1)
		return nil, fmt.Errorf("%w: unknown worker %s", ErrWorkerUnavailable, t.Worker)
	}
	life, up := w.lifetime()
	if !up {
		p.rejected.Add(1)
		return nil, fmt.Errorf("%w: worker %s is down", ErrWorkerUnavailable, t.Worker)
	}
	if err := p.rc.WaitSubmit(ctx); err != nil {
		p.rejected.Add(1)
		return nil, err
	}

	f := NewFuture(t.Worker, t.Name)
	p.submitted.Add(1)
	p.inflight.Go(func() {
		value, err := p.run(ctx, life, w, t)
		f.Settle(value, err)
	})
	return f, nil
}

func (p *Pool) run(ctx, life context.Context, w *worker, t Task) (any, error) {
	// The task ends when its caller gives up or its worker goes down.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(life, func() { cancel(context.Cause(life)) })
	defer stop()

	if err := w.slots.Acquire(ctx, 1); err != nil {
		p.failed.Add(1)
		return nil, p.taskErr(t, context.Cause(ctx))
	}
	defer w.slots.Release(1)

	if err := p.rc.AcquireTask(ctx); err != nil {
		p.failed.Add(1)
		return nil, p.taskErr(t, context.Cause(ctx))
	}
	defer p.rc.ReleaseTask()

	var (
		value any
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() { value, err = t.Fn(ctx, w.id) })

	if r := pc.Recovered(); r != nil {
		p.panicked.Add(1)
		p.failed.Add(1)
		p.logger.Error("task panicked", "task", t.Name, "worker", w.id, "panic", r.Value, "stack", string(r.Stack))
		return nil, p.taskErr(t, fmt.Errorf("%w: %v", ErrTaskPanicked, r.Value))
	}
	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("task failed", "task", t.Name, "worker", w.id, "error", err)
		return nil, err
	}
	p.succeeded.Add(1)
	return value, nil
}

func (p *Pool) taskErr(t Task, err error) error {
	return fmt.Errorf("task %s on worker %s: %w", t.Name, t.Worker, err)
}

// Kill takes a worker down. Running tasks on it observe a context cancelled
// with ErrWorkerUnavailable; new submissions are rejected until Revive.
func (p *Pool) Kill(id model.WorkerID) error {
	w, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: unknown worker %s", ErrWorkerUnavailable, id)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.down {
		return nil
	}
	w.down = true
	w.cancel(fmt.Errorf("%w: worker %s went down", ErrWorkerUnavailable, id))
	p.logger.Info("worker down", "worker", id)
	return nil
}

// Revive brings a downed worker back.
func (p *Pool) Revive(id model.WorkerID) error {
	w, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: unknown worker %s", ErrWorkerUnavailable, id)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.down {
		return nil
	}
	w.ctx, w.cancel = context.WithCancelCause(context.Background())
	w.down = false
	p.logger.Info("worker up", "worker", id)
	return nil
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Panicked:  p.panicked.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Close rejects new submissions and waits for in-flight tasks to settle.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	p.closeMu.Unlock()

	p.inflight.Wait()

	for _, w := range p.workers {
		w.cancel(ErrPoolClosed)
	}
	return nil
}
