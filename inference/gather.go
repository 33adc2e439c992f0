package inference

import (
	"fmt"

	"github.com/hupe1980/mgkmeans/model"
)

func totalRows[T any](blocks []Block[T]) int {
	n := 0
	for _, b := range blocks {
		n = max(n, b.Offset+b.Rows)
	}
	return n
}

// GatherLabels stitches label blocks into global row order.
func GatherLabels(blocks []Block[[]int32]) ([]int32, error) {
	out := make([]int32, totalRows(blocks))
	for _, b := range blocks {
		if len(b.Value) != b.Rows {
			return nil, fmt.Errorf("shard %d: %d labels for %d rows", b.Shard, len(b.Value), b.Rows)
		}
		copy(out[b.Offset:], b.Value)
	}
	return out, nil
}

// GatherMatrix stitches matrix blocks into global row order.
func GatherMatrix(blocks []Block[model.Matrix]) (model.Matrix, error) {
	if len(blocks) == 0 {
		return model.Matrix{}, nil
	}
	cols := blocks[0].Value.Cols
	out := model.NewMatrix(totalRows(blocks), cols)
	for _, b := range blocks {
		if b.Value.Rows != b.Rows || b.Value.Cols != cols {
			return model.Matrix{}, fmt.Errorf("shard %d: %v block for %d rows of %d columns", b.Shard, b.Value, b.Rows, cols)
		}
		copy(out.Data[b.Offset*cols:], b.Value.Data)
	}
	return out, nil
}
