package codec

import (
	"encoding/binary"
	"testing"

	"github.com/hupe1980/mgkmeans/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestFrame(t *testing.T) {
	// Highly compressible payload so both algorithms actually compress.
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 7)
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			frame, err := CompressFrame(payload, c)
			require.NoError(t, err)
			if c != CompressionNone {
				assert.Less(t, len(frame), len(payload))
			}

			out, err := DecompressFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestFrame_Incompressible(t *testing.T) {
	payload := []byte{1, 2, 3}
	frame, err := CompressFrame(payload, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(CompressionNone), frame[0])
	assert.Len(t, frame, frameHeaderSize+len(payload))
}

func TestDecompressFrame_Corrupt(t *testing.T) {
	_, err := DecompressFrame([]byte{0, 1})
	assert.ErrorIs(t, err, ErrCorruptFrame)

	frame, err := CompressFrame(make([]byte, 1024), CompressionLZ4)
	require.NoError(t, err)
	_, err = DecompressFrame(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrCorruptFrame)

	frame[0] = 99
	_, err = DecompressFrame(frame)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestFloat64s(t *testing.T) {
	vec := []float64{0, 1.5, -2.25, 1e300}
	frame, err := EncodeFloat64s(vec, CompressionLZ4)
	require.NoError(t, err)

	out, err := DecodeFloat64s(frame)
	require.NoError(t, err)
	assert.Equal(t, vec, out)

	empty, err := EncodeFloat64s(nil, CompressionNone)
	require.NoError(t, err)
	out, err = DecodeFloat64s(empty)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMatrix(t *testing.T) {
	m, err := model.MatrixFromRows([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	frame, err := EncodeMatrix(m, CompressionZSTD)
	require.NoError(t, err)

	out, err := DecodeMatrix(frame)
	require.NoError(t, err)
	assert.Equal(t, m, out)

	_, err = EncodeMatrix(model.Matrix{Rows: 2, Cols: 2}, CompressionNone)
	assert.Error(t, err)
}

func TestDecodeMatrix_CorruptHeader(t *testing.T) {
	header := func(rows, cols uint32, body int) []byte {
		raw := make([]byte, 8+body)
		binary.LittleEndian.PutUint32(raw[0:], rows)
		binary.LittleEndian.PutUint32(raw[4:], cols)
		frame, err := CompressFrame(raw, CompressionNone)
		require.NoError(t, err)
		return frame
	}

	tests := []struct {
		name       string
		rows, cols uint32
		body       int
	}{
		{"Overflow", 1 << 31, 1 << 31, 0},
		{"OverflowWithBody", 1 << 31, 1 << 31, 16},
		{"ShortBody", 2, 2, 12},
		{"LongBody", 1, 2, 12},
		{"RaggedBody", 1, 1, 5},
		{"ZeroColsWithBody", 3, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = DecodeMatrix(header(tt.rows, tt.cols, tt.body)) })
			assert.ErrorIs(t, err, ErrCorruptFrame)
		})
	}

	m, err := DecodeMatrix(header(0, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows)
}

func TestCompressFrame_TooLarge(t *testing.T) {
	prev := maxFrameSize
	maxFrameSize = 16
	t.Cleanup(func() { maxFrameSize = prev })

	_, err := CompressFrame(make([]byte, 17), CompressionLZ4)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = CompressFrame(make([]byte, 16), CompressionNone)
	assert.NoError(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("LZ4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)

	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}
