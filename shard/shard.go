package shard

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/mgkmeans/model"
)

var (
	// ErrEmptyDataset is returned when a dataset has no shards or no rows.
	ErrEmptyDataset = errors.New("dataset has no rows")
	// ErrUnknownWorker is returned when a shard lives on a worker outside the pool.
	ErrUnknownWorker = errors.New("shard owner is not in the worker pool")
	// ErrOverlappingShards is returned when two shards claim the same global rows.
	ErrOverlappingShards = errors.New("shards overlap")
)

// Shard is an immutable handle to a contiguous block of rows resident on
// exactly one worker.
type Shard struct {
	// Index is the position of the shard in its dataset.
	Index int
	// Worker owns the block.
	Worker model.WorkerID
	// Offset is the global index of the first row.
	Offset int
	// X holds the rows.
	X model.Matrix
}

// Rows returns the number of rows in the shard.
func (s *Shard) Rows() int { return s.X.Rows }

func (s *Shard) String() string {
	return fmt.Sprintf("Shard(%d@%s rows=[%d,%d))", s.Index, s.Worker, s.Offset, s.Offset+s.X.Rows)
}

// Dataset is an ordered set of shards with a common column count.
type Dataset struct {
	Shards []*Shard
	Layout model.Layout
	cols   int
	rows   int
}

// New builds a dataset from shards, assigning shard indexes in order.
//
// Shards must share a column count, and their global row ranges must be
// disjoint and together cover [0, total rows).
func New(layout model.Layout, shards ...*Shard) (*Dataset, error) {
	if len(shards) == 0 {
		return nil, ErrEmptyDataset
	}
	d := &Dataset{Shards: shards, Layout: layout, cols: shards[0].X.Cols}

	covered := roaring.New()
	end := 0
	for i, s := range shards {
		if s == nil {
			return nil, fmt.Errorf("shard %d is nil", i)
		}
		if err := s.X.Validate(); err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		if s.X.Cols != d.cols {
			return nil, fmt.Errorf("shard %d has %d columns, expected %d", i, s.X.Cols, d.cols)
		}
		if s.Worker == "" {
			return nil, fmt.Errorf("shard %d has no owning worker", i)
		}
		if s.Offset < 0 {
			return nil, fmt.Errorf("shard %d has negative offset %d", i, s.Offset)
		}
		s.Index = i

		block := roaring.New()
		block.AddRange(uint64(s.Offset), uint64(s.Offset+s.X.Rows))
		if covered.Intersects(block) {
			return nil, fmt.Errorf("%w: shard %d rows [%d,%d)", ErrOverlappingShards, i, s.Offset, s.Offset+s.X.Rows)
		}
		covered.Or(block)
		d.rows += s.X.Rows
		end = max(end, s.Offset+s.X.Rows)
	}

	if d.rows == 0 {
		return nil, ErrEmptyDataset
	}
	if end != d.rows || covered.GetCardinality() != uint64(d.rows) {
		return nil, fmt.Errorf("shards cover %d rows but span [0,%d)", d.rows, end)
	}
	return d, nil
}

// FromMatrix splits m into parts contiguous shards and places them on workers
// round-robin. parts <= 0 means one shard per worker.
func FromMatrix(m model.Matrix, layout model.Layout, workers []model.WorkerID, parts int) (*Dataset, error) {
	if len(workers) == 0 {
		return nil, errors.New("no workers to place shards on")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if parts <= 0 {
		parts = len(workers)
	}
	parts = min(parts, max(m.Rows, 1))

	shards := make([]*Shard, 0, parts)
	for p := range parts {
		from := p * m.Rows / parts
		to := (p + 1) * m.Rows / parts
		shards = append(shards, &Shard{
			Worker: workers[p%len(workers)],
			Offset: from,
			X:      m.Slice(from, to),
		})
	}
	return New(layout, shards...)
}

// Rows returns the total number of rows.
func (d *Dataset) Rows() int { return d.rows }

// Cols returns the number of columns.
func (d *Dataset) Cols() int { return d.cols }

// Workers returns the owning workers in order of first appearance.
func (d *Dataset) Workers() []model.WorkerID {
	seen := make(map[model.WorkerID]struct{}, len(d.Shards))
	var workers []model.WorkerID
	for _, s := range d.Shards {
		if _, ok := seen[s.Worker]; ok {
			continue
		}
		seen[s.Worker] = struct{}{}
		workers = append(workers, s.Worker)
	}
	return workers
}
