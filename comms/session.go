package comms

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/model"
)

// SessionID identifies a communicator session.
type SessionID string

// Op is a reduction operator.
type Op uint8

const (
	// OpSum adds contributions element-wise.
	OpSum Op = iota
	// OpMax keeps the element-wise maximum.
	OpMax
	// OpMin keeps the element-wise minimum.
	OpMin
)

func (o Op) String() string {
	switch o {
	case OpSum:
		return "sum"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	default:
		return fmt.Sprintf("Unknown(%d)", o)
	}
}

// Communicator is a worker's view of a session.
//
// Every enrolled worker must call the same sequence of collectives. A
// Communicator is not safe for concurrent use; it belongs to the single task
// running on its worker.
type Communicator interface {
	SessionID() SessionID
	// Rank is the worker's index in the session, in enrollment order.
	Rank() int
	// Size is the number of enrolled workers.
	Size() int
	// Allreduce combines data from every rank with op and returns the result on every rank.
	Allreduce(ctx context.Context, data []float64, op Op) ([]float64, error)
	// Allgather returns every rank's data, indexed by rank.
	Allgather(ctx context.Context, data []float64) ([][]float64, error)
	// Bcast returns root's data on every rank.
	Bcast(ctx context.Context, root int, data []float64) ([]float64, error)
	// Barrier returns once every rank has reached it.
	Barrier(ctx context.Context) error
}

// Session is a group of workers enrolled in one collective ring.
type Session struct {
	id          SessionID
	workers     []model.WorkerID
	ranks       map[model.WorkerID]int
	endpoints   []*endpoint
	compression codec.Compression

	done   chan struct{}
	closed atomic.Bool
}

func newSession(id SessionID, workers []model.WorkerID, compression codec.Compression) *Session {
	s := &Session{
		id:          id,
		workers:     append([]model.WorkerID(nil), workers...),
		ranks:       make(map[model.WorkerID]int, len(workers)),
		endpoints:   make([]*endpoint, len(workers)),
		compression: compression,
		done:        make(chan struct{}),
	}
	for rank, w := range workers {
		s.ranks[w] = rank
		s.endpoints[rank] = &endpoint{
			session: s,
			rank:    rank,
			// Peers run at most one collective ahead, so two rounds of
			// messages from every peer never block a sender.
			inbox:   make(chan envelope, 2*len(workers)),
			pending: make(map[uint64][]envelope),
		}
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() SessionID { return s.id }

// Workers returns the enrolled workers in rank order.
func (s *Session) Workers() []model.WorkerID {
	return append([]model.WorkerID(nil), s.workers...)
}

// Size returns the number of enrolled workers.
func (s *Session) Size() int { return len(s.workers) }

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool { return s.closed.Load() }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Communicator returns worker's view of the session.
func (s *Session) Communicator(worker model.WorkerID) (Communicator, error) {
	if s.Closed() {
		return nil, ErrSessionClosed
	}
	rank, ok := s.ranks[worker]
	if !ok {
		return nil, fmt.Errorf("%w: %s in session %s", ErrNotEnrolled, worker, s.id)
	}
	return s.endpoints[rank], nil
}

func (s *Session) String() string {
	return fmt.Sprintf("Session(%s, workers=%d, closed=%v)", s.id, len(s.workers), s.Closed())
}

// shutdown transitions the session to closed. It reports false if the
// session was already closed.
func (s *Session) shutdown() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	close(s.done)
	return true
}
