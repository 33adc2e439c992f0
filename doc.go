// Package mgkmeans runs k-means clustering across a pool of workers that each
// hold a disjoint shard of the data.
//
// The package does the orchestration. The numerics live behind engine.Engine
// (engine/lloyd is the reference implementation) and the workers behind
// scheduler.Scheduler (scheduler.Pool runs them in process).
//
// # Quick Start
//
//	pool := scheduler.NewPool([]model.WorkerID{"w0", "w1", "w2", "w3"})
//	defer pool.Close()
//
//	params := mgkmeans.DefaultParams()
//	params.ClusterCount = 5
//	km, _ := mgkmeans.New(pool, params, mgkmeans.WithFitTimeout(time.Minute))
//
//	if err := km.Fit(ctx, data, nil); err != nil {
//	    var fitErr *mgkmeans.DistributedFitError
//	    if errors.As(err, &fitErr) {
//	        for _, f := range fitErr.Primary() { ... }
//	    }
//	}
//
//	pending, _ := km.Predict(ctx, data, false)
//	blocks, _ := pending.Compute(ctx)
//	labels, _ := inference.GatherLabels(blocks)
//
// # Fit Round
//
// A fit groups shards by owning worker (shard.Assign), opens a communicator
// session enrolling exactly those workers, submits one fit task per worker,
// waits for all of them behind a barrier with timeout, and closes the session.
// Workers exchange centroid summaries through the session's collectives, never
// raw rows, so every worker ends with the same centroids. The first worker's
// model is published.
//
// A failure on any worker cancels the round for its peers and surfaces as a
// single DistributedFitError naming every failed worker; nothing is published.
//
// # Inference
//
// Predict, Transform and Score run one job per shard on the shard's worker.
// Predict and Transform return an inference.Pending that is submitted at once
// or, with delayed set, on the first Compute. Score sums the partial inertias
// of all shards and returns the negated total.
package mgkmeans
