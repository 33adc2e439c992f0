package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/engine"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/scheduler"
	"github.com/hupe1980/mgkmeans/shard"
)

// Result is one worker's fitted model.
type Result struct {
	Worker model.WorkerID
	Model  engine.Model
	// Rows is the number of rows the worker fitted on.
	Rows int
}

// Options configures a Dispatcher.
type Options struct {
	// Timeout bounds the fan-in barrier. Defaults to DefaultTimeout; a
	// negative value waits for as long as ctx allows.
	Timeout time.Duration
	// Logger may be nil.
	Logger *slog.Logger
}

// DefaultTimeout bounds the fan-in barrier when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Minute

// Dispatcher runs fit rounds on a scheduler.
type Dispatcher struct {
	sched  scheduler.Scheduler
	engine engine.Engine
	opts   Options
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(sched scheduler.Scheduler, eng engine.Engine, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{sched: sched, engine: eng, opts: opts, logger: logger}
}

// Dispatch runs one fit task per assigned worker against session and returns
// their models in assignment order.
//
// Any failure yields a *DistributedFitError listing every worker that did not
// produce a model, and no results.
func (d *Dispatcher) Dispatch(ctx context.Context, a *shard.Assignment, s *comms.Session, p engine.Params) ([]Result, error) {
	if err := checkSession(a, s); err != nil {
		return nil, err
	}

	round, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	logger := d.logger.With("session_id", string(s.ID()))
	fail := func(w model.WorkerID, err error) {
		abort(fmt.Errorf("%w: worker %s failed: %v", ErrRoundAborted, w, err))
	}

	futures := make([]*scheduler.Future, 0, len(a.Workers))
	var submitErr error
	for _, w := range a.Workers {
		comm, err := s.Communicator(w)
		if err != nil {
			submitErr = fmt.Errorf("worker %s: %w", w, err)
			fail(w, err)
			break
		}
		x, weights := shard.Concat(a.Parts[w])
		in := engine.FitInput{X: x, Weights: weights, Comm: comm, Params: p, Logger: logger.With("worker", string(w))}

		f, err := d.sched.Submit(round, scheduler.Task{
			Worker: w,
			Name:   "fit",
			Fn: func(ctx context.Context, _ model.WorkerID) (any, error) {
				return d.engine.Fit(ctx, in)
			},
		})
		if err != nil {
			submitErr = fmt.Errorf("submit fit to worker %s: %w", w, err)
			fail(w, err)
			break
		}
		futures = append(futures, f)

		// Any failed settle aborts the peers, including panics and workers
		// going down, which never return through Fn.
		go func() {
			select {
			case <-f.Done():
				if _, err := f.Result(); err != nil {
					fail(w, err)
				}
			case <-round.Done():
			}
		}()
	}
	logger.Debug("fit tasks submitted", "submitted", len(futures), "workers", len(a.Workers))

	errs := scheduler.WaitAll(ctx, futures, d.opts.Timeout)

	fitErr := &DistributedFitError{Session: s.ID(), Workers: len(a.Workers)}
	results := make([]Result, 0, len(futures))
	for i, f := range futures {
		w := f.Worker()
		err := errs[i]
		if err == nil {
			v, _ := f.Result()
			m, ok := v.(engine.Model)
			if !ok || m == nil {
				err = fmt.Errorf("worker %s returned %T, not a model", w, v)
			} else {
				results = append(results, Result{Worker: w, Model: m, Rows: a.WorkerRows(w)})
				continue
			}
		}
		if errors.Is(err, scheduler.ErrBarrierTimeout) {
			fail(w, err)
		}
		fitErr.Failures = append(fitErr.Failures, WorkerFailure{
			Worker:  w,
			Err:     err,
			Aborted: errors.Is(err, ErrRoundAborted),
		})
	}

	if submitErr != nil {
		failed := a.Workers[len(futures)]
		fitErr.Failures = append(fitErr.Failures, WorkerFailure{Worker: failed, Err: submitErr})
		for _, w := range a.Workers[len(futures)+1:] {
			fitErr.Failures = append(fitErr.Failures, WorkerFailure{Worker: w, Err: ErrNotSubmitted, Aborted: true})
		}
	}

	if len(fitErr.Failures) > 0 {
		logger.Warn("fit round failed", "failed", len(fitErr.Failures), "primary", len(fitErr.Primary()))
		return nil, fitErr
	}
	return results, nil
}

// checkSession verifies that s is open and enrolls exactly a's workers.
func checkSession(a *shard.Assignment, s *comms.Session) error {
	if a == nil || len(a.Workers) == 0 {
		return fmt.Errorf("%w: empty assignment", ErrSessionMismatch)
	}
	if s == nil || s.Closed() {
		return comms.ErrSessionClosed
	}
	enrolled := s.Workers()
	if len(enrolled) != len(a.Workers) {
		return fmt.Errorf("%w: session has %d workers, assignment has %d", ErrSessionMismatch, len(enrolled), len(a.Workers))
	}
	set := make(map[model.WorkerID]struct{}, len(enrolled))
	for _, w := range enrolled {
		set[w] = struct{}{}
	}
	for _, w := range a.Workers {
		if _, ok := set[w]; !ok {
			return fmt.Errorf("%w: worker %s is not enrolled", ErrSessionMismatch, w)
		}
	}
	return nil
}
