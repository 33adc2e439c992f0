package inference

import (
	"context"
	"sync"

	"github.com/hupe1980/mgkmeans/scheduler"
)

// submission is the outcome of submitting one job: a future or the reason
// there is none.
type submission struct {
	future *scheduler.Future
	err    error
}

type launchFunc func(ctx context.Context) []submission

// Strategy decides when the jobs of a pass are submitted.
type Strategy interface {
	schedule(ctx context.Context, launch launchFunc) launchFunc
	String() string
}

var (
	// Eager submits every job as soon as the pass is created.
	Eager Strategy = eager{}
	// Delayed builds the pass lazily and submits on the first Compute that
	// gets any job submitted.
	Delayed Strategy = delayed{}
)

type eager struct{}

func (eager) schedule(ctx context.Context, launch launchFunc) launchFunc {
	subs := launch(ctx)
	return func(context.Context) []submission { return subs }
}

func (eager) String() string { return "eager" }

type delayed struct{}

// schedule launches on the first Compute. Later Computes wait on the same
// jobs, unless the earlier launch submitted none (for example because its
// context had already ended), in which case they launch again.
func (delayed) schedule(_ context.Context, launch launchFunc) launchFunc {
	var (
		mu   sync.Mutex
		subs []submission
	)
	return func(ctx context.Context) []submission {
		mu.Lock()
		defer mu.Unlock()
		if !submitted(subs) {
			subs = launch(ctx)
		}
		return subs
	}
}

func submitted(subs []submission) bool {
	for _, s := range subs {
		if s.future != nil {
			return true
		}
	}
	return false
}

func (delayed) String() string { return "delayed" }

// StrategyFor returns Delayed if delayed is set and Eager otherwise.
func StrategyFor(delayed bool) Strategy {
	if delayed {
		return Delayed
	}
	return Eager
}
