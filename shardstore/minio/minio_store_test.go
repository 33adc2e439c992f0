package minio

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/datasets"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/shardstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-mgkmeans"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	t.Run("Blobs", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "blobs/hello.bin", []byte("hello minio")))

		r, err := store.Get(ctx, "blobs/hello.bin")
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, r.Close())
		require.NoError(t, err)
		assert.Equal(t, "hello minio", string(data))

		names, err := store.List(ctx, "blobs/")
		require.NoError(t, err)
		assert.Contains(t, names, "blobs/hello.bin")

		_, err = store.Get(ctx, "blobs/missing.bin")
		assert.ErrorIs(t, err, shardstore.ErrNotFound)

		require.NoError(t, store.Delete(ctx, "blobs/hello.bin"))
		require.NoError(t, store.Delete(ctx, "blobs/hello.bin"))
	})

	t.Run("Dataset", func(t *testing.T) {
		cfg := datasets.DefaultBlobsConfig()
		cfg.Workers = []model.WorkerID{"w0", "w1"}
		cfg.Parts = 3
		b, err := datasets.MakeBlobs(cfg)
		require.NoError(t, err)

		_, err = shardstore.Save(ctx, store, "run", b.Data, codec.CompressionZSTD)
		require.NoError(t, err)

		got, err := shardstore.Load(ctx, store, "run")
		require.NoError(t, err)
		assert.Equal(t, b.Data.Rows(), got.Rows())
		assert.Len(t, got.Shards, 3)
	})
}
