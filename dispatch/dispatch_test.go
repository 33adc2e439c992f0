package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/datasets"
	"github.com/hupe1980/mgkmeans/engine"
	"github.com/hupe1980/mgkmeans/engine/lloyd"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/scheduler"
	"github.com/hupe1980/mgkmeans/shard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workers = []model.WorkerID{"w0", "w1", "w2", "w3"}

// faultyEngine wraps an engine and overrides Fit on selected workers.
type faultyEngine struct {
	engine.Engine
	faults map[int]func(ctx context.Context) error
}

func (e *faultyEngine) Fit(ctx context.Context, in engine.FitInput) (engine.Model, error) {
	if fault, ok := e.faults[in.Comm.Rank()]; ok {
		return nil, fault(ctx)
	}
	return e.Engine.Fit(ctx, in)
}

type fixture struct {
	pool    *scheduler.Pool
	reg     *comms.Registry
	assign  *shard.Assignment
	session *comms.Session
	params  engine.Params
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := datasets.DefaultBlobsConfig()
	cfg.Rows = 400
	cfg.Cols = 4
	cfg.Centers = 3
	cfg.MinCenterDistance = 6
	cfg.Workers = workers
	cfg.Parts = 6
	b, err := datasets.MakeBlobs(cfg)
	require.NoError(t, err)

	pool := scheduler.NewPool(workers)
	t.Cleanup(func() { _ = pool.Close() })

	a, err := shard.Assign(b.Data, nil, pool.Workers())
	require.NoError(t, err)
	require.True(t, a.Multiple)

	reg := comms.NewRegistry(nil)
	s, err := reg.Open(context.Background(), a.Workers)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !s.Closed() {
			_ = reg.Close(s)
		}
	})

	p := engine.DefaultParams()
	p.ClusterCount = 3
	return &fixture{pool: pool, reg: reg, assign: a, session: s, params: p}
}

func TestDispatch_Success(t *testing.T) {
	fx := newFixture(t)
	d := New(fx.pool, lloyd.New(), func(o *Options) { o.Timeout = 10 * time.Second })

	results, err := d.Dispatch(context.Background(), fx.assign, fx.session, fx.params)
	require.NoError(t, err)
	require.Len(t, results, len(workers))

	total := 0
	for i, r := range results {
		assert.Equal(t, fx.assign.Workers[i], r.Worker)
		assert.Equal(t, results[0].Model.Centroids().Data, r.Model.Centroids().Data)
		total += r.Rows
	}
	assert.Equal(t, fx.assign.Rows, total)

	// The dispatcher borrows the session and leaves it open.
	assert.False(t, fx.session.Closed())
}

func TestDispatch_WorkerFailureAbortsPeers(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("worker 2 ran out of memory")
	eng := &faultyEngine{Engine: lloyd.New(), faults: map[int]func(context.Context) error{
		2: func(context.Context) error { return boom },
	}}
	d := New(fx.pool, eng, func(o *Options) { o.Timeout = 10 * time.Second })

	start := time.Now()
	results, err := d.Dispatch(context.Background(), fx.assign, fx.session, fx.params)
	assert.Nil(t, results)
	// Peers blocked in collectives return long before the barrier deadline.
	assert.Less(t, time.Since(start), 5*time.Second)

	var fitErr *DistributedFitError
	require.ErrorAs(t, err, &fitErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, fx.session.ID(), fitErr.Session)

	f, ok := fitErr.Failure("w2")
	require.True(t, ok)
	assert.False(t, f.Aborted)
	assert.ErrorIs(t, f.Err, boom)

	primary := fitErr.Primary()
	require.Len(t, primary, 1)
	assert.Equal(t, model.WorkerID("w2"), primary[0].Worker)

	for _, w := range []model.WorkerID{"w0", "w1", "w3"} {
		f, ok := fitErr.Failure(w)
		require.True(t, ok, "worker %s should be reported", w)
		assert.True(t, f.Aborted)
		assert.ErrorIs(t, f.Err, ErrRoundAborted)
	}
	assert.Contains(t, err.Error(), "w2")
}

func TestDispatch_BarrierTimeout(t *testing.T) {
	fx := newFixture(t)
	eng := &faultyEngine{Engine: lloyd.New(), faults: map[int]func(context.Context) error{
		1: func(ctx context.Context) error {
			<-ctx.Done()
			return context.Cause(ctx)
		},
	}}
	d := New(fx.pool, eng, func(o *Options) { o.Timeout = 50 * time.Millisecond })

	_, err := d.Dispatch(context.Background(), fx.assign, fx.session, fx.params)
	var fitErr *DistributedFitError
	require.ErrorAs(t, err, &fitErr)
	assert.ErrorIs(t, err, scheduler.ErrBarrierTimeout)
	assert.Len(t, fitErr.Failures, len(workers))
}

func TestDispatch_SubmitFailure(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.pool.Kill("w3"))

	d := New(fx.pool, lloyd.New(), func(o *Options) { o.Timeout = 10 * time.Second })
	_, err := d.Dispatch(context.Background(), fx.assign, fx.session, fx.params)

	var fitErr *DistributedFitError
	require.ErrorAs(t, err, &fitErr)
	assert.ErrorIs(t, err, scheduler.ErrWorkerUnavailable)

	f, ok := fitErr.Failure("w3")
	require.True(t, ok)
	assert.False(t, f.Aborted)
	for _, w := range []model.WorkerID{"w0", "w1", "w2"} {
		f, ok := fitErr.Failure(w)
		require.True(t, ok)
		assert.True(t, f.Aborted, "worker %s", w)
	}
}

func TestDispatch_SessionChecks(t *testing.T) {
	fx := newFixture(t)
	d := New(fx.pool, lloyd.New())

	other, err := fx.reg.Open(context.Background(), []model.WorkerID{"x", "y"})
	require.NoError(t, err)
	defer func() { _ = fx.reg.Close(other) }()

	_, err = d.Dispatch(context.Background(), fx.assign, other, fx.params)
	assert.ErrorIs(t, err, ErrSessionMismatch)

	_, err = d.Dispatch(context.Background(), nil, fx.session, fx.params)
	assert.ErrorIs(t, err, ErrSessionMismatch)

	require.NoError(t, fx.reg.Close(fx.session))
	_, err = d.Dispatch(context.Background(), fx.assign, fx.session, fx.params)
	assert.ErrorIs(t, err, comms.ErrSessionClosed)
}

func TestDistributedFitError(t *testing.T) {
	cause := errors.New("disk full")
	e := &DistributedFitError{
		Session: "s1",
		Workers: 3,
		Failures: []WorkerFailure{
			{Worker: "a", Err: cause},
			{Worker: "b", Err: ErrRoundAborted, Aborted: true},
		},
	}
	assert.ErrorIs(t, e, cause)
	assert.ErrorIs(t, e, ErrRoundAborted)
	assert.Equal(t, "distributed fit failed on 2 of 3 workers (session s1): a: disk full; b (aborted): fit round aborted", e.Error())

	_, ok := e.Failure("c")
	assert.False(t, ok)
}

func TestDispatch_PanicAbortsRound(t *testing.T) {
	fx := newFixture(t)
	eng := &faultyEngine{Engine: lloyd.New(), faults: map[int]func(ctx context.Context) error{
		0: func(context.Context) error { panic("bad centroid buffer") },
	}}
	d := New(fx.pool, eng)
	assert.Equal(t, DefaultTimeout, d.opts.Timeout)

	start := time.Now()
	_, err := d.Dispatch(context.Background(), fx.assign, fx.session, fx.params)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.ErrorIs(t, err, scheduler.ErrTaskPanicked)

	var fitErr *DistributedFitError
	require.ErrorAs(t, err, &fitErr)
	require.Len(t, fitErr.Primary(), 1)
	assert.Equal(t, model.WorkerID("w0"), fitErr.Primary()[0].Worker)
	for _, w := range workers[1:] {
		f, ok := fitErr.Failure(w)
		require.True(t, ok, w)
		assert.True(t, f.Aborted, w)
	}
}
