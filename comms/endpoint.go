package comms

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/mgkmeans/codec"
)

type envelope struct {
	from  int
	seq   uint64
	frame []byte
}

// endpoint is one rank's Communicator. Collectives are numbered so that
// messages from a peer that is already one collective ahead are parked until
// this rank gets there.
type endpoint struct {
	session *Session
	rank    int
	inbox   chan envelope
	pending map[uint64][]envelope
	seq     uint64
}

func (e *endpoint) SessionID() SessionID { return e.session.id }

func (e *endpoint) Rank() int { return e.rank }

func (e *endpoint) Size() int { return len(e.session.endpoints) }

// Allgather sends data to every other rank and collects theirs.
func (e *endpoint) Allgather(ctx context.Context, data []float64) ([][]float64, error) {
	seq := e.seq
	e.seq++

	if err := e.live(ctx); err != nil {
		return nil, err
	}

	gathered := make([][]float64, e.Size())
	gathered[e.rank] = slices.Clone(data)
	if e.Size() == 1 {
		return gathered, nil
	}

	frame, err := codec.EncodeFloat64s(data, e.session.compression)
	if err != nil {
		return nil, err
	}
	msg := envelope{from: e.rank, seq: seq, frame: frame}
	for _, peer := range e.session.endpoints {
		if peer == e {
			continue
		}
		select {
		case peer.inbox <- msg:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-e.session.done:
			return nil, ErrSessionClosed
		}
	}

	received := 0
	for _, env := range e.pending[seq] {
		if err := e.accept(gathered, env); err != nil {
			return nil, err
		}
		received++
	}
	delete(e.pending, seq)

	for received < e.Size()-1 {
		select {
		case env := <-e.inbox:
			if env.seq != seq {
				e.pending[env.seq] = append(e.pending[env.seq], env)
				continue
			}
			if err := e.accept(gathered, env); err != nil {
				return nil, err
			}
			received++
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-e.session.done:
			return nil, ErrSessionClosed
		}
	}
	return gathered, nil
}

func (e *endpoint) accept(gathered [][]float64, env envelope) error {
	vec, err := codec.DecodeFloat64s(env.frame)
	if err != nil {
		return fmt.Errorf("decode message from rank %d: %w", env.from, err)
	}
	gathered[env.from] = vec
	return nil
}

// Allreduce combines contributions in rank order on every rank.
func (e *endpoint) Allreduce(ctx context.Context, data []float64, op Op) ([]float64, error) {
	gathered, err := e.Allgather(ctx, data)
	if err != nil {
		return nil, err
	}
	return Reduce(op, gathered...)
}

// Bcast returns root's data on every rank.
func (e *endpoint) Bcast(ctx context.Context, root int, data []float64) ([]float64, error) {
	if root < 0 || root >= e.Size() {
		return nil, fmt.Errorf("bcast root %d out of range [0,%d)", root, e.Size())
	}
	var contribution []float64
	if e.rank == root {
		contribution = data
	}
	gathered, err := e.Allgather(ctx, contribution)
	if err != nil {
		return nil, err
	}
	return gathered[root], nil
}

// Barrier returns once every rank has entered it.
func (e *endpoint) Barrier(ctx context.Context) error {
	_, err := e.Allgather(ctx, nil)
	return err
}

func (e *endpoint) live(ctx context.Context) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}
	if e.session.Closed() {
		return ErrSessionClosed
	}
	return nil
}

// Reduce combines vectors element-wise with op, in argument order.
func Reduce(op Op, vecs ...[]float64) ([]float64, error) {
	if op > OpMin {
		return nil, fmt.Errorf("unsupported reduction %v", op)
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	for i, v := range vecs[1:] {
		if len(v) != len(vecs[0]) {
			return nil, fmt.Errorf("%w: rank %d has %d elements, rank 0 has %d", ErrLengthMismatch, i+1, len(v), len(vecs[0]))
		}
	}

	res := slices.Clone(vecs[0])
	for _, v := range vecs[1:] {
		for i, x := range v {
			switch op {
			case OpSum:
				res[i] += x
			case OpMax:
				res[i] = max(res[i], x)
			case OpMin:
				res[i] = min(res[i], x)
			}
		}
	}
	return res, nil
}
