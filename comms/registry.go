package comms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/model"
)

// Manager opens and closes sessions.
//
// Close must be called exactly once for every session returned by Open.
type Manager interface {
	Open(ctx context.Context, workers []model.WorkerID) (*Session, error)
	Close(s *Session) error
}

// Prober checks that a worker is reachable before it is enrolled.
type Prober interface {
	Ping(ctx context.Context, worker model.WorkerID) error
}

// Options configures a Registry.
type Options struct {
	// Compression applied to frames exchanged between ranks.
	Compression codec.Compression
	// ProbeTimeout bounds each reachability probe. Zero means no extra bound.
	ProbeTimeout time.Duration
	// Logger receives session lifecycle events. Nil discards.
	Logger *slog.Logger
}

// Registry is an in-process Manager. It tracks which workers are enrolled in
// open sessions so that a worker never belongs to two rings at once.
type Registry struct {
	prober Prober
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	enrolled map[model.WorkerID]SessionID
	sessions map[SessionID]*Session
}

var _ Manager = (*Registry)(nil)

// NewRegistry creates a Registry. prober may be nil, in which case every
// worker is considered reachable.
func NewRegistry(prober Prober, optFns ...func(o *Options)) *Registry {
	opts := Options{Compression: codec.CompressionNone}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		prober:   prober,
		opts:     opts,
		logger:   logger,
		enrolled: make(map[model.WorkerID]SessionID),
		sessions: make(map[SessionID]*Session),
	}
}

// Open enrolls exactly the given workers into a new session.
//
// It fails with *InitError if the set is empty or has duplicates, if a worker
// fails its reachability probe, or if a worker is already enrolled in an open
// session.
func (r *Registry) Open(ctx context.Context, workers []model.WorkerID) (*Session, error) {
	if len(workers) == 0 {
		return nil, &InitError{cause: ErrNoWorkers}
	}
	seen := make(map[model.WorkerID]struct{}, len(workers))
	for _, w := range workers {
		if _, ok := seen[w]; ok {
			return nil, &InitError{Workers: workers, cause: fmt.Errorf("%w: %s", ErrDuplicateWorker, w)}
		}
		seen[w] = struct{}{}
	}

	if unreachable, err := r.probe(ctx, workers); err != nil {
		return nil, &InitError{Workers: workers, Unreachable: unreachable, cause: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conflicts := make(map[model.WorkerID]SessionID)
	for _, w := range workers {
		if id, ok := r.enrolled[w]; ok {
			conflicts[w] = id
		}
	}
	if len(conflicts) > 0 {
		return nil, &InitError{Workers: workers, Conflicts: conflicts, cause: ErrWorkerEnrolled}
	}

	s := newSession(SessionID(uuid.NewString()), workers, r.opts.Compression)
	for _, w := range workers {
		r.enrolled[w] = s.id
	}
	r.sessions[s.id] = s

	r.logger.Debug("comms session opened", "session_id", s.id, "workers", len(workers))
	return s, nil
}

func (r *Registry) probe(ctx context.Context, workers []model.WorkerID) ([]model.WorkerID, error) {
	if r.prober == nil {
		return nil, nil
	}
	var (
		unreachable []model.WorkerID
		errs        []error
	)
	for _, w := range workers {
		pctx, cancel := ctx, context.CancelFunc(func() {})
		if r.opts.ProbeTimeout > 0 {
			pctx, cancel = context.WithTimeout(ctx, r.opts.ProbeTimeout)
		}
		err := r.prober.Ping(pctx, w)
		cancel()
		if err != nil {
			unreachable = append(unreachable, w)
			errs = append(errs, fmt.Errorf("worker %s: %w", w, err))
		}
	}
	return unreachable, errors.Join(errs...)
}

// Close tears the session down, releases its workers, and unblocks pending
// collectives. Closing a session twice returns ErrSessionClosed.
func (r *Registry) Close(s *Session) error {
	if s == nil {
		return ErrSessionClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !s.shutdown() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.id)
	}
	for _, w := range s.workers {
		if r.enrolled[w] == s.id {
			delete(r.enrolled, w)
		}
	}
	delete(r.sessions, s.id)

	r.logger.Debug("comms session closed", "session_id", s.id)
	return nil
}

// OpenSessions returns the number of open sessions.
func (r *Registry) OpenSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EnrolledIn returns the open session worker belongs to, if any.
func (r *Registry) EnrolledIn(worker model.WorkerID) (SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.enrolled[worker]
	return id, ok
}
