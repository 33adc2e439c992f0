package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/mgkmeans/engine"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/scheduler"
	"github.com/hupe1980/mgkmeans/shard"
)

// Block is the result of one shard's job.
type Block[T any] struct {
	Shard  int
	Worker model.WorkerID
	// Offset is the global index of the shard's first row.
	Offset int
	Rows   int
	Value  T
}

// Runner submits inference jobs.
type Runner struct {
	Scheduler scheduler.Scheduler
	Engine    engine.Engine
	// Timeout bounds Compute. Zero waits for as long as ctx allows.
	Timeout time.Duration
	// Logger may be nil.
	Logger *slog.Logger
	// Observe, if set, is called when a Compute finishes.
	Observe func(ctx context.Context, op string, shards int, duration time.Duration, err error)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// Pending is a pass whose results may not be computed yet.
type Pending[T any] struct {
	op       string
	strategy Strategy
	shards   []*shard.Shard
	layout   model.Layout
	launch   launchFunc
	timeout  time.Duration
	observe  func(ctx context.Context, op string, shards int, duration time.Duration, err error)
	err      error
}

// Layout returns the layout of the input dataset.
func (p *Pending[T]) Layout() model.Layout { return p.layout }

// Strategy returns the strategy the pass was built with.
func (p *Pending[T]) Strategy() Strategy { return p.strategy }

// Compute waits for every job and returns the blocks in shard order. Calling
// it again waits on the same jobs once any were submitted. Jobs run under the
// context of the call that submitted them.
func (p *Pending[T]) Compute(ctx context.Context) ([]Block[T], error) {
	start := time.Now()
	blocks, err := p.compute(ctx)
	if p.observe != nil {
		p.observe(ctx, p.op, len(p.shards), time.Since(start), err)
	}
	return blocks, err
}

func (p *Pending[T]) compute(ctx context.Context) ([]Block[T], error) {
	if p.err != nil {
		return nil, p.err
	}
	subs := p.launch(ctx)

	futures := make([]*scheduler.Future, 0, len(subs))
	for _, s := range subs {
		if s.future != nil {
			futures = append(futures, s.future)
		}
	}
	waitErrs := scheduler.WaitAll(ctx, futures, p.timeout)

	infErr := &DistributedInferenceError{Op: p.op, Shards: len(p.shards)}
	blocks := make([]Block[T], 0, len(p.shards))
	next := 0
	for i, s := range subs {
		sh := p.shards[i]
		err := s.err
		var value any
		if s.future != nil {
			err = waitErrs[next]
			value, _ = s.future.Result()
			next++
		}
		if err == nil {
			v, ok := value.(T)
			if !ok {
				err = fmt.Errorf("job returned %T", value)
			} else {
				blocks = append(blocks, Block[T]{Shard: sh.Index, Worker: sh.Worker, Offset: sh.Offset, Rows: sh.Rows(), Value: v})
				continue
			}
		}
		infErr.Failures = append(infErr.Failures, ShardFailure{Shard: sh.Index, Worker: sh.Worker, Err: err})
	}
	if len(infErr.Failures) > 0 {
		return nil, infErr
	}
	return blocks, nil
}

func start[T any](ctx context.Context, r *Runner, op string, m engine.Model, data *shard.Dataset, s Strategy,
	job func(ctx context.Context, m engine.Model, x model.Matrix) (T, error),
) *Pending[T] {
	p := &Pending[T]{op: op, strategy: s, timeout: r.Timeout, observe: r.Observe}
	if m == nil {
		p.err = fmt.Errorf("%s: %w", op, engine.ErrForeignModel)
		return p
	}
	if data == nil || len(data.Shards) == 0 {
		p.err = fmt.Errorf("%s: %w", op, shard.ErrEmptyDataset)
		return p
	}
	p.shards = data.Shards
	p.layout = data.Layout

	logger := r.logger()
	launch := func(ctx context.Context) []submission {
		subs := make([]submission, len(p.shards))
		for i, sh := range p.shards {
			f, err := r.Scheduler.Submit(ctx, scheduler.Task{
				Worker: sh.Worker,
				Name:   fmt.Sprintf("%s[%d]", op, sh.Index),
				Fn: func(ctx context.Context, _ model.WorkerID) (any, error) {
					return job(ctx, m, sh.X)
				},
			})
			subs[i] = submission{future: f, err: err}
		}
		logger.Debug("inference jobs submitted", "op", op, "shards", len(subs), "strategy", s.String())
		return subs
	}
	p.launch = s.schedule(ctx, launch)
	return p
}

// Predict labels every row with its nearest centroid.
func (r *Runner) Predict(ctx context.Context, m engine.Model, data *shard.Dataset, s Strategy) *Pending[[]int32] {
	return start(ctx, r, "predict", m, data, s, r.Engine.Predict)
}

// Transform computes every row's distance to every centroid.
func (r *Runner) Transform(ctx context.Context, m engine.Model, data *shard.Dataset, s Strategy) *Pending[model.Matrix] {
	return start(ctx, r, "transform", m, data, s, r.Engine.Transform)
}

// Score returns the negative global inertia of data under m. Partial inertias
// are summed in shard order.
func (r *Runner) Score(ctx context.Context, m engine.Model, data *shard.Dataset) (float64, error) {
	blocks, err := start(ctx, r, "score", m, data, Eager, r.Engine.Score).Compute(ctx)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, b := range blocks {
		sum += b.Value
	}
	return -sum, nil
}
