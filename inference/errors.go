package inference

import (
	"fmt"
	"strings"

	"github.com/hupe1980/mgkmeans/model"
)

// ShardFailure is one shard's failed job.
type ShardFailure struct {
	Shard  int
	Worker model.WorkerID
	Err    error
}

// DistributedInferenceError aggregates every failed shard of one pass.
type DistributedInferenceError struct {
	Op       string
	Shards   int
	Failures []ShardFailure
}

func (e *DistributedInferenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "distributed %s failed on %d of %d shards", e.Op, len(e.Failures), e.Shards)
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "shard %d on %s: %v", f.Shard, f.Worker, f.Err)
	}
	return b.String()
}

// Unwrap exposes every shard's cause to errors.Is and errors.As.
func (e *DistributedInferenceError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
