package lloyd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/distance"
	"github.com/hupe1980/mgkmeans/engine"
	"github.com/hupe1980/mgkmeans/internal/kmeans"
	"github.com/hupe1980/mgkmeans/model"
)

// Options configures an Engine.
type Options struct {
	// Observer receives per-round events. Nil means no-op.
	Observer engine.Observer
	// InitRounds is the number of k-means|| oversampling rounds. Defaults to 5.
	InitRounds int
	// RefineIterations bounds the local Lloyd passes over the k-means||
	// candidates. Defaults to 10.
	RefineIterations int
}

// Engine implements engine.Engine with Lloyd's algorithm.
type Engine struct {
	opts Options
}

var _ engine.Engine = (*Engine)(nil)

// New creates an Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{InitRounds: 5, RefineIterations: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Observer == nil {
		opts.Observer = engine.NoopObserver{}
	}
	return &Engine{opts: opts}
}

// Model is a fitted Lloyd model.
type Model struct {
	centroids  model.Matrix
	iterations int
	inertia    float64
	converged  bool
}

// NewModel wraps existing centroids, e.g. to run inference on a model fitted
// elsewhere.
func NewModel(centroids model.Matrix) *Model {
	return &Model{centroids: centroids.Clone()}
}

// Centroids implements engine.Model.
func (m *Model) Centroids() model.Matrix { return m.centroids }

// Iterations implements engine.Model.
func (m *Model) Iterations() int { return m.iterations }

// Inertia implements engine.Model.
func (m *Model) Inertia() float64 { return m.inertia }

// Converged reports whether the fit stopped on tolerance rather than on
// MaxIterations.
func (m *Model) Converged() bool { return m.converged }

func (m *Model) String() string {
	return fmt.Sprintf("lloyd.Model(k=%d, cols=%d, iterations=%d, inertia=%g)", m.centroids.Rows, m.centroids.Cols, m.iterations, m.inertia)
}

// fit carries the state of one rank's fit.
type fit struct {
	in     engine.FitInput
	p      engine.Params
	logger *slog.Logger
	labels []int32
	sqdist []float64
}

// Fit implements engine.Engine.
func (e *Engine) Fit(ctx context.Context, in engine.FitInput) (engine.Model, error) {
	if in.Comm == nil {
		return nil, fmt.Errorf("%w: fit needs a communicator", engine.ErrInvalidParams)
	}

	start := time.Now()
	m, err := e.fit(ctx, in)

	iters := 0
	if m != nil {
		iters = m.iterations
	}
	e.opts.Observer.OnFit(in.Comm.SessionID(), in.Comm.Rank(), iters, time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) fit(ctx context.Context, in engine.FitInput) (*Model, error) {
	p := in.Params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := in.X.Validate(); err != nil {
		return nil, fmt.Errorf("rank %d features: %w", in.Comm.Rank(), err)
	}
	if in.X.Cols < 1 {
		return nil, fmt.Errorf("%w: rank %d has no features", engine.ErrDimensionMismatch, in.Comm.Rank())
	}
	if in.Weights != nil && len(in.Weights) != in.X.Rows {
		return nil, fmt.Errorf("rank %d: %d weights for %d rows", in.Comm.Rank(), len(in.Weights), in.X.Rows)
	}

	logger := in.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("session_id", string(in.Comm.SessionID()), "rank", in.Comm.Rank())

	f := &fit{
		in:     in,
		p:      p,
		logger: logger,
		labels: make([]int32, in.X.Rows),
		sqdist: make([]float64, in.X.Rows),
	}

	// Every rank learns the global shape before anything depends on it.
	shape, err := in.Comm.Allgather(ctx, []float64{float64(in.X.Rows), float64(in.X.Cols)})
	if err != nil {
		return nil, err
	}
	rowCounts := make([]int, len(shape))
	total := 0
	for r, v := range shape {
		rowCounts[r] = int(v[0])
		total += rowCounts[r]
		if rowCounts[r] > 0 && int(v[1]) != in.X.Cols {
			return nil, fmt.Errorf("%w: rank %d has %d features, rank %d has %d", engine.ErrDimensionMismatch, r, int(v[1]), in.Comm.Rank(), in.X.Cols)
		}
	}
	if total < p.ClusterCount {
		return nil, fmt.Errorf("%w: %d rows cannot form %d clusters", engine.ErrInvalidParams, total, p.ClusterCount)
	}

	centroids, err := e.initialize(ctx, f, rowCounts, total)
	if err != nil {
		return nil, fmt.Errorf("initialize centroids: %w", err)
	}

	m := &Model{}
	for m.iterations < p.MaxIterations {
		stats, err := f.step(ctx, centroids)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", m.iterations, err)
		}
		var shift float64
		centroids, shift = kmeans.Update(centroids, stats)
		m.iterations++

		e.opts.Observer.OnIteration(in.Comm.Rank(), m.iterations, shift, stats.Inertia)
		if p.Verbose {
			logger.Debug("lloyd iteration", "iteration", m.iterations, "shift", shift, "inertia", stats.Inertia)
		}
		if shift <= p.Tolerance {
			m.converged = true
			break
		}
	}

	// Inertia at the centroids actually returned.
	final, err := f.step(ctx, centroids)
	if err != nil {
		return nil, fmt.Errorf("final inertia: %w", err)
	}
	m.centroids = centroids
	m.inertia = final.Inertia
	return m, nil
}

// step assigns local rows to centroids and returns the global stats.
func (f *fit) step(ctx context.Context, centroids model.Matrix) (kmeans.Stats, error) {
	if err := kmeans.Assign(ctx, f.in.X, centroids, f.p.MaxBatchRows, f.labels, f.sqdist); err != nil {
		return kmeans.Stats{}, err
	}
	local := kmeans.Accumulate(f.in.X, f.in.Weights, f.labels, f.sqdist, centroids.Rows)
	global, err := f.in.Comm.Allreduce(ctx, local.Pack(), comms.OpSum)
	if err != nil {
		return kmeans.Stats{}, err
	}
	return kmeans.Unpack(global, centroids.Rows, centroids.Cols), nil
}

func (e *Engine) initialize(ctx context.Context, f *fit, rowCounts []int, total int) (model.Matrix, error) {
	switch f.p.Init {
	case engine.InitExplicit:
		if f.p.Centers.Cols != f.in.X.Cols {
			return model.Matrix{}, fmt.Errorf("%w: centers have %d features, data has %d", engine.ErrDimensionMismatch, f.p.Centers.Cols, f.in.X.Cols)
		}
		return f.p.Centers.Clone(), nil
	case engine.InitRandom:
		return f.initRandom(ctx)
	default:
		return e.initScalable(ctx, f, rowCounts, total)
	}
}

// rankRNG is private to this rank; sharedRNG yields the same draws everywhere.
func (f *fit) rankRNG(salt int64) *rand.Rand {
	return rand.New(rand.NewSource(f.p.RandomSeed*1_000_003 + int64(f.in.Comm.Rank())*7919 + salt))
}

func (f *fit) sharedRNG() *rand.Rand {
	return rand.New(rand.NewSource(f.p.RandomSeed))
}

// gatherRows allgathers row matrices and concatenates them in rank order.
func (f *fit) gatherRows(ctx context.Context, local model.Matrix) (model.Matrix, error) {
	flat := make([]float64, len(local.Data))
	for i, v := range local.Data {
		flat[i] = float64(v)
	}
	gathered, err := f.in.Comm.Allgather(ctx, flat)
	if err != nil {
		return model.Matrix{}, err
	}
	cols := f.in.X.Cols
	var out model.Matrix
	out.Cols = cols
	for _, g := range gathered {
		for _, v := range g {
			out.Data = append(out.Data, float32(v))
		}
	}
	out.Rows = len(out.Data) / cols
	return out, nil
}

func (f *fit) initRandom(ctx context.Context) (model.Matrix, error) {
	k := f.p.ClusterCount
	rng := f.rankRNG(0)
	n := min(k, f.in.X.Rows)
	sample := model.NewMatrix(n, f.in.X.Cols)
	for i, idx := range rng.Perm(f.in.X.Rows)[:n] {
		copy(sample.Row(i), f.in.X.Row(idx))
	}

	candidates, err := f.gatherRows(ctx, sample)
	if err != nil {
		return model.Matrix{}, err
	}

	centers := model.NewMatrix(k, f.in.X.Cols)
	for c, idx := range f.sharedRNG().Perm(candidates.Rows)[:k] {
		copy(centers.Row(c), candidates.Row(idx))
	}
	return centers, nil
}

func (e *Engine) initScalable(ctx context.Context, f *fit, rowCounts []int, total int) (model.Matrix, error) {
	shared := f.sharedRNG()
	x := f.in.X
	k := f.p.ClusterCount

	// First center: a uniformly drawn global row, broadcast by its owner.
	target := shared.Intn(total)
	root, local := 0, target
	for root < len(rowCounts) && local >= rowCounts[root] {
		local -= rowCounts[root]
		root++
	}
	var first []float64
	if f.in.Comm.Rank() == root {
		first = make([]float64, x.Cols)
		for j, v := range x.Row(local) {
			first[j] = float64(v)
		}
	}
	first, err := f.in.Comm.Bcast(ctx, root, first)
	if err != nil {
		return model.Matrix{}, err
	}
	candidates := model.NewMatrix(1, x.Cols)
	for j, v := range first {
		candidates.Data[j] = float32(v)
	}

	l := f.p.OversamplingFactor * float64(k)
	for round := 0; round < e.opts.InitRounds; round++ {
		phi, err := f.cost(ctx, candidates)
		if err != nil {
			return model.Matrix{}, err
		}
		if phi <= 0 {
			break
		}

		rng := f.rankRNG(int64(round + 1))
		picked := model.Matrix{Cols: x.Cols}
		for i := 0; i < x.Rows; i++ {
			w := 1.0
			if f.in.Weights != nil {
				w = float64(f.in.Weights[i])
			}
			if rng.Float64() < math.Min(1, l*w*f.sqdist[i]/phi) {
				picked.Data = append(picked.Data, x.Row(i)...)
				picked.Rows++
			}
		}

		more, err := f.gatherRows(ctx, picked)
		if err != nil {
			return model.Matrix{}, err
		}
		candidates.Data = append(candidates.Data, more.Data...)
		candidates.Rows += more.Rows

		if f.p.Verbose {
			f.logger.Debug("k-means|| round", "round", round, "cost", phi, "candidates", candidates.Rows)
		}
	}

	// Weight every candidate by the mass of rows closest to it.
	if err := kmeans.Assign(ctx, x, candidates, f.p.MaxBatchRows, f.labels, nil); err != nil {
		return model.Matrix{}, err
	}
	mass := make([]float64, candidates.Rows)
	for i, c := range f.labels {
		w := 1.0
		if f.in.Weights != nil {
			w = float64(f.in.Weights[i])
		}
		mass[c] += w
	}
	weights, err := f.in.Comm.Allreduce(ctx, mass, comms.OpSum)
	if err != nil {
		return model.Matrix{}, err
	}

	centers := kmeans.PlusPlus(shared, candidates, weights, k)
	return kmeans.Refine(candidates, weights, centers, e.opts.RefineIterations), nil
}

// cost refreshes the local squared distances to the nearest candidate and
// returns the global weighted cost.
func (f *fit) cost(ctx context.Context, candidates model.Matrix) (float64, error) {
	if err := kmeans.Assign(ctx, f.in.X, candidates, f.p.MaxBatchRows, f.labels, f.sqdist); err != nil {
		return 0, err
	}
	var phi float64
	for i, d := range f.sqdist {
		if f.in.Weights != nil {
			d *= float64(f.in.Weights[i])
		}
		phi += d
	}
	global, err := f.in.Comm.Allreduce(ctx, []float64{phi}, comms.OpSum)
	if err != nil {
		return 0, err
	}
	return global[0], nil
}

func checkCols(m engine.Model, x model.Matrix) (model.Matrix, error) {
	if m == nil {
		return model.Matrix{}, fmt.Errorf("%w: nil model", engine.ErrForeignModel)
	}
	c := m.Centroids()
	if err := x.Validate(); err != nil {
		return model.Matrix{}, err
	}
	if x.Rows > 0 && x.Cols != c.Cols {
		return model.Matrix{}, fmt.Errorf("%w: data has %d features, model has %d", engine.ErrDimensionMismatch, x.Cols, c.Cols)
	}
	return c, nil
}

// Predict implements engine.Engine.
func (e *Engine) Predict(ctx context.Context, m engine.Model, x model.Matrix) ([]int32, error) {
	c, err := checkCols(m, x)
	if err != nil {
		return nil, err
	}
	labels := make([]int32, x.Rows)
	if err := kmeans.Assign(ctx, x, c, 0, labels, nil); err != nil {
		return nil, err
	}
	return labels, nil
}

// Transform implements engine.Engine.
func (e *Engine) Transform(ctx context.Context, m engine.Model, x model.Matrix) (model.Matrix, error) {
	c, err := checkCols(m, x)
	if err != nil {
		return model.Matrix{}, err
	}
	out := model.NewMatrix(x.Rows, c.Rows)
	for i := 0; i < x.Rows; i++ {
		if i%4096 == 0 {
			if err := context.Cause(ctx); err != nil {
				return model.Matrix{}, err
			}
		}
		row := out.Row(i)
		for j := range row {
			row[j] = float32(distance.L2(x.Row(i), c.Row(j)))
		}
	}
	return out, nil
}

// Score implements engine.Engine.
func (e *Engine) Score(ctx context.Context, m engine.Model, x model.Matrix) (float64, error) {
	c, err := checkCols(m, x)
	if err != nil {
		return 0, err
	}
	labels := make([]int32, x.Rows)
	sqdist := make([]float64, x.Rows)
	if err := kmeans.Assign(ctx, x, c, 0, labels, sqdist); err != nil {
		return 0, err
	}
	var inertia float64
	for _, d := range sqdist {
		inertia += d
	}
	return inertia, nil
}
