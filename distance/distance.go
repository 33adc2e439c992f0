package distance

import (
	"math"

	"github.com/hupe1980/mgkmeans/model"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// SquaredL2 calculates the squared Euclidean distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	n := len(a)
	i := 0
	// 4-way unroll keeps the dependency chain short.
	for ; i+4 <= n; i += 4 {
		d0 := float64(a[i]) - float64(b[i])
		d1 := float64(a[i+1]) - float64(b[i+1])
		d2 := float64(a[i+2]) - float64(b[i+2])
		d3 := float64(a[i+3]) - float64(b[i+3])
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3
	}
	for ; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// Nearest returns the index of the centroid closest to vec and the squared
// distance to it. Ties resolve to the lowest index.
// Returns -1 if centroids is empty.
func Nearest(vec []float32, centroids model.Matrix) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for j := 0; j < centroids.Rows; j++ {
		d := SquaredL2(vec, centroids.Row(j))
		if d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best, bestDist
}

// MaxAbsDiff returns the largest element-wise absolute difference between two
// equally sized slices, or +Inf if the lengths differ.
func MaxAbsDiff(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var maxDiff float64
	for i := range a {
		d := math.Abs(float64(a[i]) - float64(b[i]))
		if d > maxDiff || math.IsNaN(d) {
			maxDiff = d
		}
	}
	return maxDiff
}
