package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/model"
)

var (
	// ErrRoundAborted is the cancellation cause seen by tasks whose round was
	// cancelled because a peer failed or the barrier expired.
	ErrRoundAborted = errors.New("fit round aborted")
	// ErrSessionMismatch is returned when the session does not enroll exactly
	// the assignment's workers.
	ErrSessionMismatch = errors.New("session does not match assignment")
	// ErrNotSubmitted marks workers whose task was never submitted because the
	// round had already failed.
	ErrNotSubmitted = errors.New("task not submitted")
)

// WorkerFailure is one worker's contribution to a failed round.
type WorkerFailure struct {
	Worker model.WorkerID
	Err    error
	// Aborted is set when the worker failed only because the round was
	// cancelled on behalf of another failure.
	Aborted bool
}

func (f WorkerFailure) String() string {
	if f.Aborted {
		return fmt.Sprintf("%s (aborted): %v", f.Worker, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Worker, f.Err)
}

// DistributedFitError aggregates the failures of one fit round.
type DistributedFitError struct {
	Session  comms.SessionID
	Workers  int
	Failures []WorkerFailure
}

func (e *DistributedFitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "distributed fit failed on %d of %d workers", len(e.Failures), e.Workers)
	if e.Session != "" {
		fmt.Fprintf(&b, " (session %s)", e.Session)
	}
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// Unwrap exposes every worker's cause to errors.Is and errors.As.
func (e *DistributedFitError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Failure returns the failure recorded for worker, if any.
func (e *DistributedFitError) Failure(worker model.WorkerID) (WorkerFailure, bool) {
	for _, f := range e.Failures {
		if f.Worker == worker {
			return f, true
		}
	}
	return WorkerFailure{}, false
}

// Primary returns the failures that were not secondary aborts.
func (e *DistributedFitError) Primary() []WorkerFailure {
	var out []WorkerFailure
	for _, f := range e.Failures {
		if !f.Aborted {
			out = append(out, f)
		}
	}
	return out
}
