package shardstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	vfs "github.com/hupe1980/mgkmeans/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"Memory": NewMemoryStore(),
		"Local":  NewLocalStore(t.TempDir()),
	}
}

func readAll(t *testing.T, s BlobStore, name string) []byte {
	t.Helper()
	r, err := s.Get(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "a/one", []byte("1")))
			require.NoError(t, s.Put(ctx, "a/two", []byte("22")))
			require.NoError(t, s.Put(ctx, "b/three", []byte("333")))

			assert.Equal(t, []byte("22"), readAll(t, s, "a/two"))

			// Put replaces.
			require.NoError(t, s.Put(ctx, "a/two", []byte("two")))
			assert.Equal(t, []byte("two"), readAll(t, s, "a/two"))

			names, err := s.List(ctx, "a/")
			require.NoError(t, err)
			assert.Equal(t, []string{"a/one", "a/two"}, names)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "x", data))
	data[0] = 'z'
	assert.Equal(t, []byte("abc"), readAll(t, s, "x"))

	require.NoError(t, s.Delete(ctx, "x"))
	require.NoError(t, s.Delete(ctx, "x"))
	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_EmptyRoot(t *testing.T) {
	s := NewLocalStore(t.TempDir() + "/does-not-exist")
	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewLocalStore(t.TempDir())
	assert.ErrorIs(t, s.Put(ctx, "x", nil), context.Canceled)
	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStore_WriteFaults(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ffs := vfs.NewFaultyFS(nil)
	s := NewLocalStore(root, func(o *LocalOptions) { o.FileSystem = ffs })

	require.NoError(t, s.Put(ctx, "keep", []byte("old")))

	tests := []struct {
		name  string
		fault vfs.Fault
	}{
		{"Write", vfs.Fault{FailAfterBytes: 2}},
		{"Sync", vfs.Fault{FailAfterBytes: -1, FailOnSync: true}},
		{"Close", vfs.Fault{FailAfterBytes: -1, FailOnClose: true}},
		{"Rename", vfs.Fault{FailAfterBytes: -1, FailOnRename: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ffs.ClearRules()
			ffs.AddRule("keep", tt.fault)

			err := s.Put(ctx, "keep", []byte("new"))
			assert.ErrorIs(t, err, vfs.ErrInjected)
			assert.Equal(t, []byte("old"), readAll(t, s, "keep"))

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			require.Len(t, entries, 1, "temporary file left behind")
		})
	}
}

func TestLocalStore_RejectsEscapingNames(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "root")
	s := NewLocalStore(root)

	for _, name := range []string{"../outside", "a/../../outside", "/abs"} {
		assert.ErrorIs(t, s.Put(ctx, name, []byte("x")), ErrInvalidName, name)
		_, err := s.Get(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, err := os.Stat(filepath.Join(root, "..", "outside"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, s.Put(ctx, "a/../inside", []byte("ok")))
	assert.Equal(t, []byte("ok"), readAll(t, s, "inside"))
}
