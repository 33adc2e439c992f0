package shardstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/resource"
	"github.com/hupe1980/mgkmeans/shard"
)

// Options configures Save and Load.
type Options struct {
	// Concurrency bounds the number of blocks transferred at once.
	// Default: 4.
	Concurrency int
	// Controller, if set, throttles block transfers to its IO budget.
	Controller *resource.Controller
	Logger     *slog.Logger
}

func applyOptions(optFns []func(o *Options)) Options {
	o := Options{Concurrency: 4}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Save writes every shard of data as a compressed block below prefix, then
// the manifest.
func Save(ctx context.Context, store BlobStore, prefix string, data *shard.Dataset, c codec.Compression, optFns ...func(o *Options)) (*Manifest, error) {
	if data == nil || len(data.Shards) == 0 {
		return nil, shard.ErrEmptyDataset
	}
	o := applyOptions(optFns)

	m := &Manifest{
		Version:     FormatVersion,
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Layout:      data.Layout.String(),
		Cols:        data.Cols(),
		Rows:        data.Rows(),
		Compression: c.String(),
		Blocks:      make([]Block, len(data.Shards)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)
	for i, s := range data.Shards {
		m.Blocks[i] = Block{Name: blockName(i), Worker: s.Worker, Offset: s.Offset, Rows: s.Rows()}
		g.Go(func() error {
			frame, err := codec.EncodeMatrix(s.X, c)
			if err != nil {
				return fmt.Errorf("encode shard %d: %w", i, err)
			}
			if err := o.Controller.AcquireIO(gctx, len(frame)); err != nil {
				return err
			}
			if err := store.Put(gctx, path.Join(prefix, blockName(i)), frame); err != nil {
				return fmt.Errorf("put shard %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw, err := encodeManifest(m)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, path.Join(prefix, ManifestName), raw); err != nil {
		return nil, fmt.Errorf("put manifest: %w", err)
	}

	o.Logger.Debug("dataset saved", "prefix", prefix, "id", m.ID, "blocks", len(m.Blocks), "rows", m.Rows)
	return m, nil
}

// ReadManifest reads and validates the manifest below prefix.
func ReadManifest(ctx context.Context, store BlobStore, prefix string) (*Manifest, error) {
	raw, err := get(ctx, store, path.Join(prefix, ManifestName), nil)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return decodeManifest(raw)
}

// Load reads the dataset saved below prefix. Blocks are fetched in parallel
// and placed on the workers recorded in the manifest.
func Load(ctx context.Context, store BlobStore, prefix string, optFns ...func(o *Options)) (*shard.Dataset, error) {
	o := applyOptions(optFns)

	m, err := ReadManifest(ctx, store, prefix)
	if err != nil {
		return nil, err
	}
	layout, err := parseLayout(m.Layout)
	if err != nil {
		return nil, err
	}

	shards := make([]*shard.Shard, len(m.Blocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)
	for i, b := range m.Blocks {
		g.Go(func() error {
			frame, err := get(gctx, store, path.Join(prefix, b.Name), o.Controller)
			if err != nil {
				return fmt.Errorf("block %s: %w", b.Name, err)
			}
			x, err := codec.DecodeMatrix(frame)
			if err != nil {
				return fmt.Errorf("block %s: %w", b.Name, err)
			}
			if x.Rows != b.Rows || x.Cols != m.Cols {
				return fmt.Errorf("%w: %s holds %dx%d, expected %dx%d", ErrBlockMismatch, b.Name, x.Rows, x.Cols, b.Rows, m.Cols)
			}
			shards[i] = &shard.Shard{Worker: b.Worker, Offset: b.Offset, X: x}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := shard.New(layout, shards...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	o.Logger.Debug("dataset loaded", "prefix", prefix, "id", m.ID, "blocks", len(m.Blocks), "rows", m.Rows)
	return data, nil
}

func get(ctx context.Context, store BlobStore, name string, rc *resource.Controller) ([]byte, error) {
	r, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resource.NewRateLimitedReader(ctx, r, rc)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
