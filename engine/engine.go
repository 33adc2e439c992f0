package engine

import (
	"context"
	"log/slog"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/model"
)

// Model is a fitted engine-local model. It must be safe for concurrent reads.
type Model interface {
	// Centroids returns the ClusterCount × Cols centroid matrix. Callers must
	// not modify it.
	Centroids() model.Matrix
	// Iterations is the number of Lloyd rounds run.
	Iterations() int
	// Inertia is the global weighted inertia at the final centroids.
	Inertia() float64
}

// FitInput is everything one worker's fit task needs.
type FitInput struct {
	// X holds the worker's rows, concatenated when it owns several shards.
	X model.Matrix
	// Weights has one entry per row of X, or is nil for unit weights.
	Weights []float32
	// Comm is the worker's view of the fit session.
	Comm   comms.Communicator
	Params Params
	// Logger may be nil.
	Logger *slog.Logger
}

// Engine is the per-worker clustering implementation.
type Engine interface {
	// Fit runs the distributed fit from one worker. Every enrolled worker calls
	// Fit with the same Params.
	Fit(ctx context.Context, in FitInput) (Model, error)
	// Predict returns the nearest centroid of every row of x.
	Predict(ctx context.Context, m Model, x model.Matrix) ([]int32, error)
	// Transform returns the Euclidean distance from every row of x to every
	// centroid, as an x.Rows × ClusterCount matrix.
	Transform(ctx context.Context, m Model, x model.Matrix) (model.Matrix, error)
	// Score returns the partial inertia of x: the sum of squared distances to
	// the nearest centroid. It is non-negative.
	Score(ctx context.Context, m Model, x model.Matrix) (float64, error)
}
