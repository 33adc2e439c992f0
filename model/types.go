package model

import (
	"fmt"
	"slices"
)

// WorkerID identifies a worker in the pool.
type WorkerID string

// String returns the worker identity.
func (w WorkerID) String() string { return string(w) }

// Layout is the container type of a dataset.
// Inference results are returned in the same layout as the fitted input.
type Layout uint8

const (
	// LayoutArray is a columnar array (dense matrix) layout.
	LayoutArray Layout = iota
	// LayoutTabular is a data-frame layout.
	LayoutTabular
)

func (l Layout) String() string {
	switch l {
	case LayoutArray:
		return "array"
	case LayoutTabular:
		return "tabular"
	default:
		return fmt.Sprintf("Unknown(%d)", l)
	}
}

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed rows × cols matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// MatrixFromRows builds a matrix from row slices.
// All rows must have the same length.
func MatrixFromRows(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return Matrix{}, fmt.Errorf("row %d has %d columns, expected %d", i, len(r), cols)
		}
		copy(m.Data[i*cols:], r)
	}
	return m, nil
}

// Row returns a view of row i.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns the element at (i, j).
func (m Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Slice returns a view of rows [from, to).
func (m Matrix) Slice(from, to int) Matrix {
	return Matrix{Rows: to - from, Cols: m.Cols, Data: m.Data[from*m.Cols : to*m.Cols]}
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	return Matrix{Rows: m.Rows, Cols: m.Cols, Data: slices.Clone(m.Data)}
}

// Validate checks that the backing slice matches the shape.
func (m Matrix) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return fmt.Errorf("invalid shape %dx%d", m.Rows, m.Cols)
	}
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("shape %dx%d does not match %d elements", m.Rows, m.Cols, len(m.Data))
	}
	return nil
}

// String returns a short shape description.
func (m Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d)", m.Rows, m.Cols)
}
