package kmeans

import (
	"context"
	"math/rand"
	"testing"

	"github.com/hupe1980/mgkmeans/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoClusters(t *testing.T) model.Matrix {
	t.Helper()
	// 2 clusters: (0,0) and (10,10)
	x, err := model.MatrixFromRows([][]float32{
		{0, 0}, {0, 1}, {1, 0},
		{10, 10}, {10, 11}, {11, 10},
	})
	require.NoError(t, err)
	return x
}

func TestAssign(t *testing.T) {
	x := twoClusters(t)
	centroids, err := model.MatrixFromRows([][]float32{{0, 0}, {10, 10}})
	require.NoError(t, err)

	labels := make([]int32, x.Rows)
	sqdist := make([]float64, x.Rows)
	require.NoError(t, Assign(context.Background(), x, centroids, 2, labels, sqdist))

	assert.Equal(t, []int32{0, 0, 0, 1, 1, 1}, labels)
	assert.Equal(t, []float64{0, 1, 1, 0, 1, 1}, sqdist)
}

func TestAssign_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := twoClusters(t)
	labels := make([]int32, x.Rows)
	err := Assign(ctx, x, x.Slice(0, 1), 1, labels, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccumulateAndUpdate(t *testing.T) {
	x := twoClusters(t)
	labels := []int32{0, 0, 0, 1, 1, 1}
	weights := []float32{1, 1, 2, 1, 1, 1}

	s := Accumulate(x, weights, labels, []float64{0, 1, 1, 0, 1, 1}, 3)
	assert.Equal(t, []float64{2, 1, 31, 31, 0, 0}, s.Sums)
	assert.Equal(t, []float64{4, 3, 0}, s.Counts)
	assert.Equal(t, 5.0, s.Inertia)

	prev, err := model.MatrixFromRows([][]float32{{0, 0}, {10, 10}, {5, 5}})
	require.NoError(t, err)
	next, shift := Update(prev, s)

	assert.InDelta(t, 0.5, next.At(0, 0), 1e-6)
	assert.InDelta(t, 0.25, next.At(0, 1), 1e-6)
	assert.InDelta(t, 31.0/3, next.At(1, 0), 1e-6)
	// Empty cluster keeps its centroid.
	assert.Equal(t, []float32{5, 5}, next.Row(2))
	assert.InDelta(t, 0.5, shift, 1e-6)

	// Prev is left untouched.
	assert.Equal(t, []float32{0, 0}, prev.Row(0))
}

func TestPackUnpack(t *testing.T) {
	s := Stats{Sums: []float64{1, 2, 3, 4}, Counts: []float64{5, 6}, Inertia: 7}
	packed := s.Pack()
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, packed)
	assert.Equal(t, s, Unpack(packed, 2, 2))
}

func TestPlusPlus(t *testing.T) {
	x := twoClusters(t)

	centers := PlusPlus(rand.New(rand.NewSource(1)), x, nil, 2)
	require.Equal(t, 2, centers.Rows)

	// Seeding spreads the two centers across both clusters.
	near := func(c []float32) int {
		if c[0] < 5 {
			return 0
		}
		return 1
	}
	assert.NotEqual(t, near(centers.Row(0)), near(centers.Row(1)))

	// Same seed, same centers.
	again := PlusPlus(rand.New(rand.NewSource(1)), x, nil, 2)
	assert.Equal(t, centers, again)
}

func TestPlusPlus_FewCandidates(t *testing.T) {
	x := twoClusters(t).Slice(0, 2)
	centers := PlusPlus(rand.New(rand.NewSource(3)), x, nil, 3)
	assert.Equal(t, []float32{0, 0, 0, 1, 0, 1}, centers.Data)
}

func TestPlusPlus_ZeroWeightNeverChosen(t *testing.T) {
	x := twoClusters(t)
	weights := []float64{0, 0, 0, 1, 0, 0}
	centers := PlusPlus(rand.New(rand.NewSource(9)), x, weights, 1)
	assert.Equal(t, []float32{10, 10}, centers.Row(0))
}

func TestRefine(t *testing.T) {
	x := twoClusters(t)
	start, err := model.MatrixFromRows([][]float32{{0, 0}, {0, 1}})
	require.NoError(t, err)

	centers := Refine(x, nil, start, 10)
	assert.InDelta(t, 1.0/3, centers.At(0, 0), 1e-5)
	assert.InDelta(t, 31.0/3, centers.At(1, 1), 1e-5)
}
