// Package inference runs predict, transform and score passes of a fitted
// model over a sharded dataset.
//
// Each shard becomes one job on the worker that holds it. Jobs are
// independent, so a failed shard never cancels the others; failures are
// collected into a DistributedInferenceError when the results are computed.
//
// Predict and Transform return a Pending value. With Eager the jobs are
// submitted immediately; with Delayed nothing runs until the first Compute.
package inference
