package mgkmeans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/dispatch"
	"github.com/hupe1980/mgkmeans/engine/lloyd"
	"github.com/hupe1980/mgkmeans/inference"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/scheduler"
	"github.com/hupe1980/mgkmeans/shard"
)

// KMeans is a distributed k-means estimator over a worker pool.
//
// Fit calls are serialized; inference may run concurrently with each other and
// with Fit, always against the most recently published model.
type KMeans struct {
	sched  scheduler.Scheduler
	params Params
	opts   options

	dispatcher *dispatch.Dispatcher
	runner     *inference.Runner

	fitMu sync.Mutex
	model atomic.Pointer[DistributedModel]
}

// New creates an estimator that runs on sched.
func New(sched scheduler.Scheduler, params Params, optFns ...Option) (*KMeans, error) {
	if sched == nil {
		return nil, errors.New("mgkmeans: nil scheduler")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)

	if o.engine == nil {
		o.engine = lloyd.New()
	}
	if o.comms == nil {
		o.comms = comms.NewRegistry(sched, func(co *comms.Options) {
			co.Compression = o.compression
			co.Logger = o.logger.Logger
		})
	}

	k := &KMeans{
		sched:  sched,
		params: params,
		opts:   o,
		dispatcher: dispatch.New(sched, o.engine, func(do *dispatch.Options) {
			do.Timeout = o.fitTimeout
			do.Logger = o.logger.Logger
		}),
		runner: &inference.Runner{
			Scheduler: sched,
			Engine:    o.engine,
			Timeout:   o.inferenceTimeout,
			Logger:    o.logger.Logger,
			Observe: func(ctx context.Context, op string, shards int, d time.Duration, err error) {
				o.metricsCollector.RecordInference(op, shards, d, err)
				o.logger.LogInference(ctx, op, shards, err)
			},
		},
	}
	return k, nil
}

// Params returns the estimator's parameters.
func (k *KMeans) Params() Params { return k.params }

// Model returns the published model, or nil before the first successful Fit.
func (k *KMeans) Model() *DistributedModel { return k.model.Load() }

// ClusterCenters returns a copy of the fitted centroids and the layout of the
// fitted data.
func (k *KMeans) ClusterCenters() (model.Matrix, model.Layout, error) {
	m := k.model.Load()
	if m == nil {
		return model.Matrix{}, 0, ErrNotFitted
	}
	return m.Centroids(), m.Layout(), nil
}

// Fit clusters data, optionally weighted per row by weights.
//
// The previous model is withdrawn when Fit starts and a new one is published
// only if every worker succeeds. The session opened for the round is closed
// before Fit returns, whatever the outcome.
func (k *KMeans) Fit(ctx context.Context, data, weights *shard.Dataset) error {
	k.fitMu.Lock()
	defer k.fitMu.Unlock()

	k.model.Store(nil)

	start := time.Now()
	rows, workers, err := k.fit(ctx, data, weights)
	k.opts.metricsCollector.RecordFit(workers, rows, time.Since(start), err)
	k.opts.logger.LogFit(ctx, workers, rows, time.Since(start), err)
	return err
}

func (k *KMeans) fit(ctx context.Context, data, weights *shard.Dataset) (int, int, error) {
	a, err := shard.Assign(data, weights, k.sched.Workers())
	if err != nil {
		return 0, 0, err
	}
	rows, workers := a.Rows, len(a.Workers)
	if rows < k.params.ClusterCount {
		return rows, workers, fmt.Errorf("%w: %d rows cannot form %d clusters", ErrInvalidParams, rows, k.params.ClusterCount)
	}
	if k.params.Init == InitExplicit && k.params.Centers.Cols != a.Cols {
		return rows, workers, fmt.Errorf("%w: centers have %d features, data has %d", ErrDimensionMismatch, k.params.Centers.Cols, a.Cols)
	}

	s, err := k.opts.comms.Open(ctx, a.Workers)
	k.opts.metricsCollector.RecordSession("open", err)
	if err != nil {
		k.opts.logger.LogSession(ctx, "open", workers, err)
		return rows, workers, err
	}
	logger := k.opts.logger.WithSession(s.ID())
	logger.LogSession(ctx, "open", workers, nil)

	results, err := k.dispatcher.Dispatch(ctx, a, s, k.params)

	closeErr := k.opts.comms.Close(s)
	k.opts.metricsCollector.RecordSession("close", closeErr)
	logger.LogSession(ctx, "close", workers, closeErr)

	if err != nil {
		return rows, workers, errors.Join(err, closeErr)
	}
	if closeErr != nil {
		return rows, workers, closeErr
	}

	if k.opts.centroidCheck {
		maxDiff, divErr := CheckCentroidConsistency(results, k.opts.checkTolerance)
		k.opts.metricsCollector.RecordDivergence(maxDiff, divErr != nil)
		if divErr != nil {
			logger.LogDivergence(ctx, maxDiff, k.opts.checkTolerance)
			if k.opts.strictCheck {
				return rows, workers, divErr
			}
		}
	}

	m, err := SelectModel(results, a.Layout)
	if err != nil {
		return rows, workers, err
	}
	k.model.Store(m)
	return rows, workers, nil
}

// fitted returns the published model, checking that data matches it.
func (k *KMeans) fitted(data *shard.Dataset) (*DistributedModel, error) {
	m := k.model.Load()
	if m == nil {
		return nil, ErrNotFitted
	}
	if data == nil || len(data.Shards) == 0 {
		return nil, shard.ErrEmptyDataset
	}
	if cols := m.centroids.Cols; data.Cols() != cols {
		return nil, fmt.Errorf("%w: data has %d features, model has %d", ErrDimensionMismatch, data.Cols(), cols)
	}
	return m, nil
}

// Predict labels every row of data with its nearest centroid. With delayed
// set, no job runs until the first Compute.
func (k *KMeans) Predict(ctx context.Context, data *shard.Dataset, delayed bool) (*inference.Pending[[]int32], error) {
	m, err := k.fitted(data)
	if err != nil {
		return nil, err
	}
	return k.runner.Predict(ctx, m.local, data, inference.StrategyFor(delayed)), nil
}

// Transform computes every row's distance to every centroid.
func (k *KMeans) Transform(ctx context.Context, data *shard.Dataset, delayed bool) (*inference.Pending[model.Matrix], error) {
	m, err := k.fitted(data)
	if err != nil {
		return nil, err
	}
	return k.runner.Transform(ctx, m.local, data, inference.StrategyFor(delayed)), nil
}

// Score returns the negative inertia of data under the fitted model.
func (k *KMeans) Score(ctx context.Context, data *shard.Dataset) (float64, error) {
	m, err := k.fitted(data)
	if err != nil {
		return 0, err
	}
	return k.runner.Score(ctx, m.local, data)
}

// FitPredict fits on data and labels it.
func (k *KMeans) FitPredict(ctx context.Context, data, weights *shard.Dataset, delayed bool) (*inference.Pending[[]int32], error) {
	if err := k.Fit(ctx, data, weights); err != nil {
		return nil, err
	}
	return k.Predict(ctx, data, delayed)
}

// FitTransform fits on data and transforms it.
func (k *KMeans) FitTransform(ctx context.Context, data *shard.Dataset, delayed bool) (*inference.Pending[model.Matrix], error) {
	if err := k.Fit(ctx, data, nil); err != nil {
		return nil, err
	}
	return k.Transform(ctx, data, delayed)
}
