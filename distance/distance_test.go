package distance

import (
	"math"
	"testing"

	"github.com/hupe1980/mgkmeans/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Unrolled", []float32{1, 1, 1, 1, 1}, []float32{0, 0, 0, 0, 0}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-9)
		})
	}

	assert.InDelta(t, math.Sqrt(27), L2([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-9)
}

func TestNearest(t *testing.T) {
	centroids, err := model.MatrixFromRows([][]float32{{0, 0}, {10, 10}, {20, 20}})
	require.NoError(t, err)

	idx, d2 := Nearest([]float32{9, 9}, centroids)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 2.0, d2, 1e-9)

	// Equidistant: lowest index wins.
	idx, _ = Nearest([]float32{5, 5}, centroids)
	assert.Equal(t, 0, idx)

	idx, d2 = Nearest([]float32{1, 1}, model.Matrix{Cols: 2})
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(d2, 1))
}

func TestMaxAbsDiff(t *testing.T) {
	assert.InDelta(t, 0.5, MaxAbsDiff([]float32{1, 2}, []float32{1.5, 2}), 1e-9)
	assert.Zero(t, MaxAbsDiff(nil, nil))
	assert.True(t, math.IsInf(MaxAbsDiff([]float32{1}, nil), 1))
}
