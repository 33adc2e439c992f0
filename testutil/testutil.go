package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/mgkmeans/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Intn in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// GaussianMatrix returns a rows × cols matrix of standard normal values.
func (r *RNG) GaussianMatrix(rows, cols int) model.Matrix {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := model.NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = float32(r.rand.NormFloat64())
	}
	return m
}

// Weights returns n weights drawn uniformly from [lo, hi).
func (r *RNG) Weights(n int, lo, hi float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := make([]float32, n)
	for i := range w {
		w[i] = lo + r.rand.Float32()*(hi-lo)
	}
	return w
}

// Workers returns n worker IDs named w0, w1, ...
func Workers(n int) []model.WorkerID {
	ids := make([]model.WorkerID, n)
	for i := range ids {
		ids[i] = model.WorkerID(fmt.Sprintf("w%d", i))
	}
	return ids
}
