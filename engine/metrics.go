package engine

import (
	"time"

	"github.com/hupe1980/mgkmeans/comms"
)

// Observer receives per-rank fit events.
type Observer interface {
	// OnIteration is called after each Lloyd round.
	OnIteration(rank, iteration int, shift, inertia float64)
	// OnFit is called once a fit finishes, successfully or not.
	OnFit(session comms.SessionID, rank, iterations int, duration time.Duration, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

// OnIteration implements Observer.
func (NoopObserver) OnIteration(int, int, float64, float64) {}

// OnFit implements Observer.
func (NoopObserver) OnFit(comms.SessionID, int, int, time.Duration, error) {}
