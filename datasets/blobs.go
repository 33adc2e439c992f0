// Package datasets generates sharded synthetic datasets.
package datasets

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/hupe1980/mgkmeans/distance"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/shard"
)

// BlobsConfig configures MakeBlobs.
type BlobsConfig struct {
	Rows    int
	Cols    int
	Centers int
	// Std is the per-feature standard deviation around each center.
	Std float64
	// CenterBox bounds the uniform draw of center coordinates.
	CenterBox [2]float64
	// MinCenterDistance rejects center draws closer than this to an earlier
	// center. Zero accepts any draw.
	MinCenterDistance float64
	// Parts is the number of shards. Zero means one per worker.
	Parts   int
	Workers []model.WorkerID
	Seed    int64
	Layout  model.Layout
}

// DefaultBlobsConfig mirrors the usual make_blobs defaults.
func DefaultBlobsConfig() BlobsConfig {
	return BlobsConfig{
		Rows:      100,
		Cols:      2,
		Centers:   3,
		Std:       1,
		CenterBox: [2]float64{-10, 10},
		Seed:      1,
		Layout:    model.LayoutArray,
	}
}

// Blobs is a generated dataset with its ground truth.
type Blobs struct {
	// Data is X split into shards and placed on the workers.
	Data *shard.Dataset
	// X is the unsharded feature matrix.
	X model.Matrix
	// Labels holds the generating center of every row.
	Labels []int32
	// Centers are the generating centers.
	Centers model.Matrix
}

// MakeBlobs draws isotropic Gaussian blobs. Rows are spread evenly over the
// centers and shuffled before sharding.
func MakeBlobs(cfg BlobsConfig) (*Blobs, error) {
	switch {
	case cfg.Rows < 1:
		return nil, fmt.Errorf("rows must be >= 1, got %d", cfg.Rows)
	case cfg.Cols < 1:
		return nil, fmt.Errorf("cols must be >= 1, got %d", cfg.Cols)
	case cfg.Centers < 1:
		return nil, fmt.Errorf("centers must be >= 1, got %d", cfg.Centers)
	case cfg.Std < 0:
		return nil, fmt.Errorf("std must be >= 0, got %g", cfg.Std)
	case len(cfg.Workers) == 0:
		return nil, errors.New("no workers")
	}
	if cfg.CenterBox == [2]float64{} {
		cfg.CenterBox = [2]float64{-10, 10}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centers, err := drawCenters(rng, cfg)
	if err != nil {
		return nil, err
	}

	labels := make([]int32, cfg.Rows)
	for i := range labels {
		labels[i] = int32(i % cfg.Centers)
	}
	rng.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })

	x := model.NewMatrix(cfg.Rows, cfg.Cols)
	for i, c := range labels {
		row := x.Row(i)
		for j, v := range centers.Row(int(c)) {
			row[j] = v + float32(rng.NormFloat64()*cfg.Std)
		}
	}

	data, err := shard.FromMatrix(x, cfg.Layout, cfg.Workers, cfg.Parts)
	if err != nil {
		return nil, err
	}
	return &Blobs{Data: data, X: x, Labels: labels, Centers: centers}, nil
}

func drawCenters(rng *rand.Rand, cfg BlobsConfig) (model.Matrix, error) {
	lo, hi := cfg.CenterBox[0], cfg.CenterBox[1]
	centers := model.NewMatrix(cfg.Centers, cfg.Cols)
	const maxTries = 1000
	for c := 0; c < cfg.Centers; c++ {
		row := centers.Row(c)
		for try := 0; ; try++ {
			if try == maxTries {
				return model.Matrix{}, fmt.Errorf("cannot place %d centers %g apart in box [%g, %g]", cfg.Centers, cfg.MinCenterDistance, lo, hi)
			}
			for j := range row {
				row[j] = float32(lo + rng.Float64()*(hi-lo))
			}
			if farEnough(centers, c, cfg.MinCenterDistance) {
				break
			}
		}
	}
	return centers, nil
}

func farEnough(centers model.Matrix, c int, minDist float64) bool {
	if minDist <= 0 {
		return true
	}
	for prev := 0; prev < c; prev++ {
		if distance.L2(centers.Row(c), centers.Row(prev)) < minDist {
			return false
		}
	}
	return true
}
