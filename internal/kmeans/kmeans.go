package kmeans

import (
	"context"
	"math"
	"math/rand"

	"github.com/hupe1980/mgkmeans/distance"
	"github.com/hupe1980/mgkmeans/model"
)

// Assign writes the nearest centroid and its squared distance for every row of
// x. Rows are processed in batches of batchRows; ctx is checked between
// batches. labels and sqdist must have x.Rows entries; sqdist may be nil.
func Assign(ctx context.Context, x, centroids model.Matrix, batchRows int, labels []int32, sqdist []float64) error {
	if batchRows <= 0 {
		batchRows = x.Rows
	}
	for start := 0; start < x.Rows; start += batchRows {
		if err := context.Cause(ctx); err != nil {
			return err
		}
		end := min(start+batchRows, x.Rows)
		for i := start; i < end; i++ {
			idx, d := distance.Nearest(x.Row(i), centroids)
			labels[i] = int32(idx)
			if sqdist != nil {
				sqdist[i] = d
			}
		}
	}
	return nil
}

// Stats are the local contributions of one Lloyd step. Sums is k×cols
// row-major.
type Stats struct {
	Sums    []float64
	Counts  []float64
	Inertia float64
}

// Accumulate sums rows per label, weighted by weights (nil means unit weight).
func Accumulate(x model.Matrix, weights []float32, labels []int32, sqdist []float64, k int) Stats {
	s := Stats{
		Sums:   make([]float64, k*x.Cols),
		Counts: make([]float64, k),
	}
	for i := 0; i < x.Rows; i++ {
		w := 1.0
		if weights != nil {
			w = float64(weights[i])
		}
		c := int(labels[i])
		sum := s.Sums[c*x.Cols : (c+1)*x.Cols]
		for j, v := range x.Row(i) {
			sum[j] += w * float64(v)
		}
		s.Counts[c] += w
		if sqdist != nil {
			s.Inertia += w * sqdist[i]
		}
	}
	return s
}

// Pack flattens the stats into one vector for a single allreduce:
// [sums..., counts..., inertia].
func (s Stats) Pack() []float64 {
	out := make([]float64, 0, len(s.Sums)+len(s.Counts)+1)
	out = append(out, s.Sums...)
	out = append(out, s.Counts...)
	return append(out, s.Inertia)
}

// Unpack is the inverse of Pack for k clusters of cols features.
func Unpack(v []float64, k, cols int) Stats {
	return Stats{
		Sums:    v[:k*cols],
		Counts:  v[k*cols : k*cols+k],
		Inertia: v[k*cols+k],
	}
}

// Update computes new centroids from global sums. Clusters with zero weight
// keep their previous centroid. It returns the largest coordinate shift.
func Update(prev model.Matrix, s Stats) (model.Matrix, float64) {
	next := prev.Clone()
	var shift float64
	for c := 0; c < prev.Rows; c++ {
		if s.Counts[c] <= 0 {
			continue
		}
		row := next.Row(c)
		sum := s.Sums[c*prev.Cols : (c+1)*prev.Cols]
		for j := range row {
			row[j] = float32(sum[j] / s.Counts[c])
		}
	}
	for i := range next.Data {
		shift = math.Max(shift, math.Abs(float64(next.Data[i]-prev.Data[i])))
	}
	return next, shift
}

// PlusPlus picks k centers from candidates with weighted k-means++ seeding.
// Weights scale each candidate's sampling probability; nil means uniform.
// If there are at most k candidates they are all returned, padded by repeating
// the last one.
func PlusPlus(rng *rand.Rand, candidates model.Matrix, weights []float64, k int) model.Matrix {
	centers := model.NewMatrix(k, candidates.Cols)
	if candidates.Rows == 0 || k == 0 {
		return centers
	}
	if candidates.Rows <= k {
		for c := 0; c < k; c++ {
			copy(centers.Row(c), candidates.Row(min(c, candidates.Rows-1)))
		}
		return centers
	}

	w := func(i int) float64 {
		if weights == nil {
			return 1
		}
		return weights[i]
	}

	first := sample(rng, candidates.Rows, w)
	copy(centers.Row(0), candidates.Row(first))

	closest := make([]float64, candidates.Rows)
	for i := range closest {
		closest[i] = distance.SquaredL2(candidates.Row(i), centers.Row(0))
	}

	for c := 1; c < k; c++ {
		next := sample(rng, candidates.Rows, func(i int) float64 { return w(i) * closest[i] })
		copy(centers.Row(c), candidates.Row(next))
		for i := range closest {
			closest[i] = math.Min(closest[i], distance.SquaredL2(candidates.Row(i), centers.Row(c)))
		}
	}
	return centers
}

// sample draws an index with probability proportional to p(i). When every
// weight is zero it falls back to a uniform draw.
func sample(rng *rand.Rand, n int, p func(int) float64) int {
	var total float64
	for i := 0; i < n; i++ {
		total += p(i)
	}
	if total <= 0 {
		return rng.Intn(n)
	}
	target := rng.Float64() * total
	for i := 0; i < n; i++ {
		target -= p(i)
		if target < 0 {
			return i
		}
	}
	return n - 1
}

// Refine runs weighted Lloyd iterations on a small candidate set in memory.
func Refine(candidates model.Matrix, weights []float64, centers model.Matrix, iters int) model.Matrix {
	labels := make([]int32, candidates.Rows)
	w32 := make([]float32, candidates.Rows)
	for i := range w32 {
		w32[i] = 1
		if weights != nil {
			w32[i] = float32(weights[i])
		}
	}
	for range iters {
		_ = Assign(context.Background(), candidates, centers, 0, labels, nil)
		var shift float64
		centers, shift = Update(centers, Accumulate(candidates, w32, labels, nil, centers.Rows))
		if shift == 0 {
			break
		}
	}
	return centers
}
