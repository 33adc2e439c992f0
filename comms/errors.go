package comms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/mgkmeans/model"
)

var (
	// ErrSessionClosed is returned by collectives on a closed session and by a
	// second Close of the same session.
	ErrSessionClosed = errors.New("comms session closed")
	// ErrNotEnrolled is returned when a worker asks for a communicator of a
	// session it is not part of.
	ErrNotEnrolled = errors.New("worker not enrolled in session")
	// ErrWorkerEnrolled is returned when a worker is already part of an open session.
	ErrWorkerEnrolled = errors.New("worker already enrolled in another session")
	// ErrNoWorkers is returned when opening a session without workers.
	ErrNoWorkers = errors.New("no workers to enroll")
	// ErrDuplicateWorker is returned when a worker is listed twice.
	ErrDuplicateWorker = errors.New("duplicate worker")
	// ErrLengthMismatch is returned when ranks contribute vectors of different lengths to a reduction.
	ErrLengthMismatch = errors.New("mismatching vector lengths")
)

// InitError reports a session that could not be opened. No session exists
// after it is returned, so there is nothing to clean up.
type InitError struct {
	Workers []model.WorkerID
	// Unreachable lists workers that failed the reachability probe.
	Unreachable []model.WorkerID
	// Conflicts maps workers to the open session they are already enrolled in.
	Conflicts map[model.WorkerID]SessionID
	cause     error
}

func (e *InitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "comms init failed for %d workers", len(e.Workers))
	if len(e.Unreachable) > 0 {
		fmt.Fprintf(&b, "; unreachable: %v", e.Unreachable)
	}
	if len(e.Conflicts) > 0 {
		fmt.Fprintf(&b, "; already enrolled: %d", len(e.Conflicts))
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

func (e *InitError) Unwrap() error { return e.cause }
