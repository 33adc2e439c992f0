package shard

import (
	"fmt"

	"github.com/hupe1980/mgkmeans/model"
)

// AlignmentError reports weight shards that do not line up with the feature
// shards of the same worker. It is fatal and raised before any session or
// network activity.
type AlignmentError struct {
	Worker model.WorkerID
	// Shard is the index of the offending feature shard, or -1 for count mismatches.
	Shard        int
	FeatureRows  int
	WeightRows   int
	FeatureCount int
	WeightCount  int
	Reason       string
}

func (e *AlignmentError) Error() string {
	if e.Shard < 0 {
		return fmt.Sprintf("shard alignment: worker %s has %d feature shards but %d weight shards", e.Worker, e.FeatureCount, e.WeightCount)
	}
	if e.Reason != "" {
		return fmt.Sprintf("shard alignment: worker %s shard %d: %s", e.Worker, e.Shard, e.Reason)
	}
	return fmt.Sprintf("shard alignment: worker %s shard %d has %d rows but its weights have %d", e.Worker, e.Shard, e.FeatureRows, e.WeightRows)
}

// Part pairs a feature shard with its optional weight shard.
type Part struct {
	X *Shard
	W *Shard
}

// Assignment maps each worker to the ordered shards it owns.
type Assignment struct {
	// Workers lists workers with at least one shard, in order of first appearance.
	Workers []model.WorkerID
	// Parts maps worker to its parts in dataset order.
	Parts map[model.WorkerID][]Part
	// Multiple is true if any worker owns more than one shard, so per-worker
	// concatenation is needed.
	Multiple bool
	// Weighted is true if a weight dataset was supplied.
	Weighted bool
	Layout   model.Layout
	Rows     int
	Cols     int
}

// WorkerRows returns the number of rows owned by worker.
func (a *Assignment) WorkerRows(worker model.WorkerID) int {
	n := 0
	for _, p := range a.Parts[worker] {
		n += p.X.Rows()
	}
	return n
}

// Assign groups the shards of data (and optional weights) by owning worker.
//
// pool lists the available workers; an empty pool accepts any owner. When
// weights are given, each worker's weight shards must align one-to-one and
// row-count-exact with its feature shards, otherwise an *AlignmentError is
// returned.
func Assign(data, weights *Dataset, pool []model.WorkerID) (*Assignment, error) {
	if data == nil || data.Rows() == 0 {
		return nil, ErrEmptyDataset
	}

	if len(pool) > 0 {
		allowed := make(map[model.WorkerID]struct{}, len(pool))
		for _, w := range pool {
			allowed[w] = struct{}{}
		}
		for _, s := range data.Shards {
			if _, ok := allowed[s.Worker]; !ok {
				return nil, fmt.Errorf("%w: shard %d on %s", ErrUnknownWorker, s.Index, s.Worker)
			}
		}
	}

	a := &Assignment{
		Workers:  data.Workers(),
		Parts:    make(map[model.WorkerID][]Part, len(data.Shards)),
		Weighted: weights != nil,
		Layout:   data.Layout,
		Rows:     data.Rows(),
		Cols:     data.Cols(),
	}
	for _, s := range data.Shards {
		a.Parts[s.Worker] = append(a.Parts[s.Worker], Part{X: s})
	}

	if weights != nil {
		if err := alignWeights(a, weights); err != nil {
			return nil, err
		}
	}

	for _, w := range a.Workers {
		if len(a.Parts[w]) > 1 {
			a.Multiple = true
			break
		}
	}
	return a, nil
}

func alignWeights(a *Assignment, weights *Dataset) error {
	byWorker := make(map[model.WorkerID][]*Shard, len(weights.Shards))
	for _, s := range weights.Shards {
		byWorker[s.Worker] = append(byWorker[s.Worker], s)
	}

	for w := range byWorker {
		if _, ok := a.Parts[w]; !ok {
			return &AlignmentError{Worker: w, Shard: -1, WeightCount: len(byWorker[w])}
		}
	}

	for _, w := range a.Workers {
		parts := a.Parts[w]
		ws := byWorker[w]
		if len(ws) != len(parts) {
			return &AlignmentError{Worker: w, Shard: -1, FeatureCount: len(parts), WeightCount: len(ws)}
		}
		for i := range parts {
			x, wt := parts[i].X, ws[i]
			if wt.X.Cols != 1 {
				return &AlignmentError{Worker: w, Shard: x.Index, Reason: fmt.Sprintf("weights have %d columns, expected 1", wt.X.Cols)}
			}
			if x.Rows() != wt.Rows() {
				return &AlignmentError{Worker: w, Shard: x.Index, FeatureRows: x.Rows(), WeightRows: wt.Rows()}
			}
			if x.Offset != wt.Offset {
				return &AlignmentError{Worker: w, Shard: x.Index, Reason: fmt.Sprintf("weights start at row %d, features at row %d", wt.Offset, x.Offset)}
			}
			parts[i].W = wt
		}
	}
	return nil
}

// Concat joins a worker's parts into one feature matrix and one weight vector.
// Weights are nil if the parts are unweighted. A single part is returned
// without copying.
func Concat(parts []Part) (model.Matrix, []float32) {
	if len(parts) == 0 {
		return model.Matrix{}, nil
	}
	weighted := parts[0].W != nil
	if len(parts) == 1 {
		var w []float32
		if weighted {
			w = parts[0].W.X.Data
		}
		return parts[0].X.X, w
	}

	rows := 0
	for _, p := range parts {
		rows += p.X.Rows()
	}
	cols := parts[0].X.X.Cols
	x := model.Matrix{Rows: rows, Cols: cols, Data: make([]float32, 0, rows*cols)}
	var w []float32
	if weighted {
		w = make([]float32, 0, rows)
	}
	for _, p := range parts {
		x.Data = append(x.Data, p.X.X.Data...)
		if weighted {
			w = append(w, p.W.X.Data...)
		}
	}
	return x, w
}
