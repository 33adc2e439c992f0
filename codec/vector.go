package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/mgkmeans/model"
)

// EncodeFloat64s encodes a vector into a frame.
func EncodeFloat64s(vec []float64, c Compression) ([]byte, error) {
	raw := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	return CompressFrame(raw, c)
}

// DecodeFloat64s decodes a frame written by EncodeFloat64s.
func DecodeFloat64s(frame []byte) ([]float64, error) {
	raw, err := DecompressFrame(frame)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%w: payload of %d bytes is not a float64 vector", ErrCorruptFrame, len(raw))
	}
	vec := make([]float64, len(raw)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return vec, nil
}

// EncodeMatrix encodes a matrix into a frame.
// Payload: [Rows uint32][Cols uint32][float32 LE ...]
func EncodeMatrix(m model.Matrix, c Compression) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if uint64(m.Rows) > math.MaxUint32 || uint64(m.Cols) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %dx%d matrix", ErrFrameTooLarge, m.Rows, m.Cols)
	}
	raw := make([]byte, 8+4*len(m.Data))
	binary.LittleEndian.PutUint32(raw[0:], uint32(m.Rows))
	binary.LittleEndian.PutUint32(raw[4:], uint32(m.Cols))
	for i, v := range m.Data {
		binary.LittleEndian.PutUint32(raw[8+i*4:], math.Float32bits(v))
	}
	return CompressFrame(raw, c)
}

// DecodeMatrix decodes a frame written by EncodeMatrix.
func DecodeMatrix(frame []byte) (model.Matrix, error) {
	raw, err := DecompressFrame(frame)
	if err != nil {
		return model.Matrix{}, err
	}
	if len(raw) < 8 {
		return model.Matrix{}, fmt.Errorf("%w: missing matrix header", ErrCorruptFrame)
	}
	rows := int(binary.LittleEndian.Uint32(raw[0:]))
	cols := int(binary.LittleEndian.Uint32(raw[4:]))
	payload := len(raw) - 8
	// Bound the header before multiplying: rows*cols may not fit an int.
	ok := payload%4 == 0
	if elems := payload / 4; ok && (rows == 0 || cols == 0) {
		ok = elems == 0
	} else if ok {
		ok = rows <= elems/cols && rows*cols == elems
	}
	if !ok {
		return model.Matrix{}, fmt.Errorf("%w: %dx%d matrix with %d payload bytes", ErrCorruptFrame, rows, cols, payload)
	}
	m := model.NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[8+i*4:]))
	}
	return m, nil
}
