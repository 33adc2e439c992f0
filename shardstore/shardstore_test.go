package shardstore

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/datasets"
	vfs "github.com/hupe1980/mgkmeans/internal/fs"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/resource"
	"github.com/hupe1980/mgkmeans/shard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset(t *testing.T) *shard.Dataset {
	t.Helper()
	cfg := datasets.DefaultBlobsConfig()
	cfg.Rows = 250
	cfg.Cols = 3
	cfg.Parts = 5
	cfg.Workers = []model.WorkerID{"w0", "w1"}
	cfg.Layout = model.LayoutTabular
	b, err := datasets.MakeBlobs(cfg)
	require.NoError(t, err)
	return b.Data
}

func assertSameDataset(t *testing.T, want, got *shard.Dataset) {
	t.Helper()
	assert.Equal(t, want.Layout, got.Layout)
	assert.Equal(t, want.Rows(), got.Rows())
	assert.Equal(t, want.Cols(), got.Cols())
	require.Len(t, got.Shards, len(want.Shards))
	for i := range want.Shards {
		assert.Equal(t, want.Shards[i].Worker, got.Shards[i].Worker)
		assert.Equal(t, want.Shards[i].Offset, got.Shards[i].Offset)
		assert.Equal(t, want.Shards[i].X, got.Shards[i].X)
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	data := dataset(t)

	for _, c := range []codec.Compression{codec.CompressionNone, codec.CompressionLZ4, codec.CompressionZSTD} {
		for name, s := range stores(t) {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				m, err := Save(ctx, s, "run", data, c)
				require.NoError(t, err)
				assert.Len(t, m.Blocks, 5)
				assert.NotEmpty(t, m.ID)
				assert.Equal(t, c.String(), m.Compression)

				got, err := Load(ctx, s, "run", func(o *Options) { o.Concurrency = 2 })
				require.NoError(t, err)
				assertSameDataset(t, data, got)

				names, err := s.List(ctx, "run/")
				require.NoError(t, err)
				assert.Contains(t, names, "run/"+ManifestName)
				assert.Len(t, names, 6)
			})
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	data := dataset(t)

	t.Run("NoManifest", func(t *testing.T) {
		_, err := Load(ctx, NewMemoryStore(), "run")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("MissingBlock", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := Save(ctx, s, "run", data, codec.CompressionLZ4)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, path.Join("run", blockName(3))))

		_, err = Load(ctx, s, "run")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RowMismatch", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := Save(ctx, s, "run", data, codec.CompressionNone)
		require.NoError(t, err)

		frame, err := codec.EncodeMatrix(model.NewMatrix(7, 3), codec.CompressionNone)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, path.Join("run", blockName(1)), frame))

		_, err = Load(ctx, s, "run")
		assert.ErrorIs(t, err, ErrBlockMismatch)
	})

	t.Run("CorruptManifest", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Put(ctx, path.Join("run", ManifestName), []byte("{not json")))
		_, err := Load(ctx, s, "run")
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})

	t.Run("RowCountDisagrees", func(t *testing.T) {
		s := NewMemoryStore()
		m, err := Save(ctx, s, "run", data, codec.CompressionNone)
		require.NoError(t, err)
		m.Rows++
		raw, err := encodeManifest(m)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, path.Join("run", ManifestName), raw))

		_, err = Load(ctx, s, "run")
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})

	t.Run("BlockEscapesPrefix", func(t *testing.T) {
		for _, name := range []string{"../../x", "..", "a/../../x", "/etc/passwd", `..\x`, "."} {
			s := NewMemoryStore()
			m, err := Save(ctx, s, "run", data, codec.CompressionNone)
			require.NoError(t, err)
			m.Blocks[0].Name = name
			raw, err := encodeManifest(m)
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, path.Join("run", ManifestName), raw))

			_, err = Load(ctx, s, "run")
			assert.ErrorIs(t, err, ErrInvalidManifest, name)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Save(ctx, NewMemoryStore(), "run", nil, codec.CompressionNone)
		assert.ErrorIs(t, err, shard.ErrEmptyDataset)
	})
}

// failingStore fails every Put after the first n.
type failingStore struct {
	*MemoryStore
	n int
}

func (s *failingStore) Put(ctx context.Context, name string, data []byte) error {
	if s.n <= 0 {
		return errors.New("disk full")
	}
	s.n--
	return s.MemoryStore.Put(ctx, name, data)
}

func TestSave_NoManifestOnFailure(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{MemoryStore: NewMemoryStore(), n: 2}

	_, err := Save(ctx, s, "run", dataset(t), codec.CompressionNone, func(o *Options) { o.Concurrency = 1 })
	require.Error(t, err)

	_, err = ReadManifest(ctx, s, "run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_RateLimited(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := Save(ctx, s, "run", dataset(t), codec.CompressionNone)
	require.NoError(t, err)

	rc := resource.NewController(resource.Config{IOBytesPerSec: 64})
	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = Load(cctx, s, "run", func(o *Options) { o.Controller = rc })
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSave_LocalBlockFault(t *testing.T) {
	ctx := context.Background()
	ffs := vfs.NewFaultyFS(nil)
	ffs.AddRule(blockName(3), vfs.Fault{FailAfterBytes: -1, FailOnSync: true})
	s := NewLocalStore(t.TempDir(), func(o *LocalOptions) { o.FileSystem = ffs })

	_, err := Save(ctx, s, "run", dataset(t), codec.CompressionLZ4)
	require.ErrorIs(t, err, vfs.ErrInjected)

	_, err = ReadManifest(ctx, s, "run")
	assert.ErrorIs(t, err, ErrNotFound)

	ffs.ClearRules()
	_, err = Save(ctx, s, "run", dataset(t), codec.CompressionLZ4)
	require.NoError(t, err)
	_, err = Load(ctx, s, "run")
	require.NoError(t, err)
}
