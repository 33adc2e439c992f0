package shard

import (
	"testing"

	"github.com/hupe1980/mgkmeans/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix(rows, cols int, start float32) model.Matrix {
	m := model.NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = start + float32(i)
	}
	return m
}

func TestNew(t *testing.T) {
	d, err := New(model.LayoutArray,
		&Shard{Worker: "a", Offset: 0, X: matrix(3, 2, 0)},
		&Shard{Worker: "b", Offset: 3, X: matrix(2, 2, 100)},
	)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Rows())
	assert.Equal(t, 2, d.Cols())
	assert.Equal(t, 1, d.Shards[1].Index)
	assert.Equal(t, []model.WorkerID{"a", "b"}, d.Workers())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		shards []*Shard
		target error
	}{
		{"Empty", nil, ErrEmptyDataset},
		{"NoRows", []*Shard{{Worker: "a", X: model.NewMatrix(0, 2)}}, ErrEmptyDataset},
		{"Overlap", []*Shard{
			{Worker: "a", Offset: 0, X: matrix(3, 2, 0)},
			{Worker: "b", Offset: 2, X: matrix(3, 2, 0)},
		}, ErrOverlappingShards},
		{"Gap", []*Shard{
			{Worker: "a", Offset: 0, X: matrix(3, 2, 0)},
			{Worker: "b", Offset: 4, X: matrix(3, 2, 0)},
		}, nil},
		{"ColumnMismatch", []*Shard{
			{Worker: "a", Offset: 0, X: matrix(3, 2, 0)},
			{Worker: "b", Offset: 3, X: matrix(3, 3, 0)},
		}, nil},
		{"NoWorker", []*Shard{{Offset: 0, X: matrix(3, 2, 0)}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(model.LayoutArray, tt.shards...)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestFromMatrix(t *testing.T) {
	m := matrix(10, 2, 0)
	d, err := FromMatrix(m, model.LayoutTabular, []model.WorkerID{"a", "b", "c"}, 4)
	require.NoError(t, err)
	require.Len(t, d.Shards, 4)
	assert.Equal(t, model.LayoutTabular, d.Layout)
	assert.Equal(t, model.WorkerID("a"), d.Shards[3].Worker)

	total := 0
	for _, s := range d.Shards {
		assert.Equal(t, total, s.Offset)
		total += s.Rows()
	}
	assert.Equal(t, 10, total)

	// Defaults to one shard per worker.
	d, err = FromMatrix(m, model.LayoutArray, []model.WorkerID{"a", "b"}, 0)
	require.NoError(t, err)
	assert.Len(t, d.Shards, 2)

	_, err = FromMatrix(m, model.LayoutArray, nil, 2)
	assert.Error(t, err)
}
