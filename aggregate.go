package mgkmeans

import (
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/mgkmeans/dispatch"
	"github.com/hupe1980/mgkmeans/distance"
	"github.com/hupe1980/mgkmeans/engine"
	"github.com/hupe1980/mgkmeans/model"
)

// DistributedModel is a published fit result. It is immutable.
type DistributedModel struct {
	centroids model.Matrix
	layout    model.Layout
	source    model.WorkerID
	workers   int
	local     engine.Model
	fittedAt  time.Time
}

// Centroids returns a copy of the ClusterCount × Cols centroid matrix.
func (m *DistributedModel) Centroids() model.Matrix { return m.centroids.Clone() }

// Layout is the layout of the fitted dataset.
func (m *DistributedModel) Layout() model.Layout { return m.layout }

// Source is the worker whose model was selected.
func (m *DistributedModel) Source() model.WorkerID { return m.source }

// Workers is the number of workers that took part in the fit.
func (m *DistributedModel) Workers() int { return m.workers }

// Engine returns the engine-local model used for inference.
func (m *DistributedModel) Engine() engine.Model { return m.local }

// FittedAt is when the model was selected.
func (m *DistributedModel) FittedAt() time.Time { return m.fittedAt }

func (m *DistributedModel) String() string {
	return fmt.Sprintf("DistributedModel(k=%d, cols=%d, source=%s, workers=%d)", m.centroids.Rows, m.centroids.Cols, m.source, m.workers)
}

// SelectModel picks the model of the first worker in assignment order.
//
// Every worker ends a successful round with the same centroids, so any one
// would do; picking the first keeps selection deterministic. SelectModel
// refuses to choose from an empty or partially failed set.
func SelectModel(results []dispatch.Result, layout model.Layout) (*DistributedModel, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	for _, r := range results {
		if r.Model == nil {
			return nil, fmt.Errorf("%w: worker %s has no model", ErrIncompleteResults, r.Worker)
		}
	}
	first := results[0]
	return &DistributedModel{
		centroids: first.Model.Centroids().Clone(),
		layout:    layout,
		source:    first.Worker,
		workers:   len(results),
		local:     first.Model,
		fittedAt:  time.Now(),
	}, nil
}

// CheckCentroidConsistency returns the largest absolute difference between any
// worker's centroids and worker 0's, and a *CentroidDivergenceError if it
// exceeds tol.
func CheckCentroidConsistency(results []dispatch.Result, tol float64) (float64, error) {
	if len(results) == 0 {
		return 0, ErrNoResults
	}
	for _, r := range results {
		if r.Model == nil {
			return 0, fmt.Errorf("%w: worker %s has no model", ErrIncompleteResults, r.Worker)
		}
	}

	ref := results[0].Model.Centroids()
	var (
		maxDiff float64
		worst   model.WorkerID
	)
	for _, r := range results[1:] {
		c := r.Model.Centroids()
		d := math.Inf(1)
		if c.Rows == ref.Rows && c.Cols == ref.Cols {
			d = distance.MaxAbsDiff(ref.Data, c.Data)
		}
		if d > maxDiff {
			maxDiff, worst = d, r.Worker
		}
	}
	if maxDiff > tol {
		return maxDiff, &CentroidDivergenceError{Worker: worst, MaxDiff: maxDiff, Tolerance: tol}
	}
	return maxDiff, nil
}
