package mgkmeans

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/dispatch"
	"github.com/hupe1980/mgkmeans/engine"
	"github.com/hupe1980/mgkmeans/inference"
	"github.com/hupe1980/mgkmeans/model"
	"github.com/hupe1980/mgkmeans/scheduler"
	"github.com/hupe1980/mgkmeans/shard"
)

var (
	// ErrNotFitted is returned by inference before a successful Fit.
	ErrNotFitted = errors.New("model not fitted")
	// ErrNoResults is returned when selecting a model from no results.
	ErrNoResults = errors.New("no fit results")
	// ErrIncompleteResults is returned when a result set contains a worker
	// without a model.
	ErrIncompleteResults = errors.New("incomplete fit results")

	ErrSessionClosed     = comms.ErrSessionClosed
	ErrBarrierTimeout    = scheduler.ErrBarrierTimeout
	ErrRoundAborted      = dispatch.ErrRoundAborted
	ErrUnknownWorker     = shard.ErrUnknownWorker
	ErrWorkerUnavailable = scheduler.ErrWorkerUnavailable
	ErrTaskPanicked      = scheduler.ErrTaskPanicked
	ErrInvalidParams     = engine.ErrInvalidParams
	ErrDimensionMismatch = engine.ErrDimensionMismatch
)

type (
	// ShardAlignmentError reports weights that do not line up with features.
	ShardAlignmentError = shard.AlignmentError
	// CommsInitError reports a session that could not be opened.
	CommsInitError = comms.InitError
	// DistributedFitError aggregates the failures of a fit round.
	DistributedFitError = dispatch.DistributedFitError
	// WorkerFailure is one entry of a DistributedFitError.
	WorkerFailure = dispatch.WorkerFailure
	// DistributedInferenceError aggregates failed inference shards.
	DistributedInferenceError = inference.DistributedInferenceError
)

// CentroidDivergenceError reports workers whose centroids differ from worker
// 0's by more than the tolerance.
type CentroidDivergenceError struct {
	// Worker is the worker with the largest difference.
	Worker    model.WorkerID
	MaxDiff   float64
	Tolerance float64
}

func (e *CentroidDivergenceError) Error() string {
	return fmt.Sprintf("centroids of worker %s differ from the selected model by %g (tolerance %g)", e.Worker, e.MaxDiff, e.Tolerance)
}
