package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/mgkmeans"
	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/datasets"
	"github.com/hupe1980/mgkmeans/inference"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/scheduler"
	"github.com/hupe1980/mgkmeans/shard"
	"github.com/hupe1980/mgkmeans/shardstore"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate blobs, fit, predict and score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(v, cmd.Flags(), file)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := simulate(ctx, cfg)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}
	addFlags(cmd.Flags())
	return cmd
}

// Report is the outcome of one simulation.
type Report struct {
	Workers   int
	Shards    int
	Rows      int
	Centroids model.Matrix
	Layout    model.Layout
	ARI       float64
	Score     float64
	Duration  time.Duration
	Stats     mgkmeans.BasicMetricsStats
}

func simulate(ctx context.Context, cfg Config) (*Report, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	compression, err := codec.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	ids := make([]model.WorkerID, cfg.Workers)
	for i := range ids {
		ids[i] = model.WorkerID(fmt.Sprintf("worker-%d", i))
	}
	logger := cfg.logger()
	pool := scheduler.NewPool(ids, func(o *scheduler.Options) {
		o.Logger = logger.Logger
	})
	defer pool.Close()

	bc := datasets.DefaultBlobsConfig()
	bc.Rows = cfg.Rows
	bc.Cols = cfg.Cols
	bc.Centers = cfg.Clusters
	bc.Std = cfg.Std
	bc.Parts = cfg.Parts
	bc.Workers = ids
	bc.Seed = cfg.Seed
	blobs, err := datasets.MakeBlobs(bc)
	if err != nil {
		return nil, err
	}

	data := blobs.Data
	if cfg.Store != "" {
		if data, err = roundTrip(ctx, cfg.Store, data, compression); err != nil {
			return nil, err
		}
	}

	metrics := &mgkmeans.BasicMetricsCollector{}
	km, err := mgkmeans.New(pool, params,
		mgkmeans.WithLogger(logger),
		mgkmeans.WithMetricsCollector(metrics),
		mgkmeans.WithFitTimeout(cfg.Timeout),
		mgkmeans.WithCompression(compression),
		mgkmeans.WithCentroidCheck(1e-5),
	)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pending, err := km.FitPredict(ctx, data, nil, cfg.Delayed)
	if err != nil {
		return nil, err
	}
	blocks, err := pending.Compute(ctx)
	if err != nil {
		return nil, err
	}
	labels, err := inference.GatherLabels(blocks)
	if err != nil {
		return nil, err
	}
	score, err := km.Score(ctx, data)
	if err != nil {
		return nil, err
	}
	centroids, layout, err := km.ClusterCenters()
	if err != nil {
		return nil, err
	}

	return &Report{
		Workers:   cfg.Workers,
		Shards:    len(data.Shards),
		Rows:      data.Rows(),
		Centroids: centroids,
		Layout:    layout,
		ARI:       datasets.AdjustedRandIndex(blobs.Labels, labels),
		Score:     score,
		Duration:  time.Since(start),
		Stats:     metrics.GetStats(),
	}, nil
}

func roundTrip(ctx context.Context, dir string, data *shard.Dataset, c codec.Compression) (*shard.Dataset, error) {
	store := shardstore.NewLocalStore(dir)
	m, err := shardstore.Save(ctx, store, "kmeanssim", data, c)
	if err != nil {
		return nil, err
	}
	loaded, err := shardstore.Load(ctx, store, "kmeanssim")
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", m.ID, err)
	}
	return loaded, nil
}

func (r *Report) print(w io.Writer) {
	fmt.Fprintf(w, "workers: %d  shards: %d  rows: %d  layout: %s\n", r.Workers, r.Shards, r.Rows, r.Layout)
	fmt.Fprintf(w, "centroids (%dx%d):\n", r.Centroids.Rows, r.Centroids.Cols)
	for i := 0; i < r.Centroids.Rows; i++ {
		cells := make([]string, r.Centroids.Cols)
		for j, v := range r.Centroids.Row(i) {
			cells[j] = fmt.Sprintf("%8.3f", v)
		}
		fmt.Fprintf(w, "  [%d] %s\n", i, strings.Join(cells, " "))
	}
	fmt.Fprintf(w, "adjusted rand index: %.4f\n", r.ARI)
	fmt.Fprintf(w, "score: %.4f\n", r.Score)
	fmt.Fprintf(w, "max centroid divergence: %g\n", r.Stats.MaxDivergence)
	fmt.Fprintf(w, "elapsed: %s\n", r.Duration.Round(time.Millisecond))
}
