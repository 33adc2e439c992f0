package mgkmeans

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordFit is called after each fit. err is nil if successful.
	RecordFit(workers, rows int, duration time.Duration, err error)

	// RecordSession is called after each session open attempt and close.
	RecordSession(event string, err error)

	// RecordInference is called after each predict, transform or score pass.
	RecordInference(op string, shards int, duration time.Duration, err error)

	// RecordDivergence is called with the measured centroid divergence when
	// the consistency check runs.
	RecordDivergence(maxDiff float64, exceeded bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFit(int, int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordSession(string, error)                       {}
func (NoopMetricsCollector) RecordInference(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDivergence(float64, bool)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	FitCount          atomic.Int64
	FitErrors         atomic.Int64
	FitTotalNanos     atomic.Int64
	FitRows           atomic.Int64
	SessionsOpened    atomic.Int64
	SessionsClosed    atomic.Int64
	SessionErrors     atomic.Int64
	InferenceCount    atomic.Int64
	InferenceErrors   atomic.Int64
	InferenceShards   atomic.Int64
	DivergenceChecks  atomic.Int64
	DivergenceAlerts  atomic.Int64
	maxDivergenceBits atomic.Uint64
}

// RecordFit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFit(workers, rows int, duration time.Duration, err error) {
	b.FitCount.Add(1)
	b.FitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FitErrors.Add(1)
		return
	}
	b.FitRows.Add(int64(rows))
}

// RecordSession implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSession(event string, err error) {
	if err != nil {
		b.SessionErrors.Add(1)
		return
	}
	switch event {
	case "open":
		b.SessionsOpened.Add(1)
	case "close":
		b.SessionsClosed.Add(1)
	}
}

// RecordInference implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInference(op string, shards int, duration time.Duration, err error) {
	b.InferenceCount.Add(1)
	b.InferenceShards.Add(int64(shards))
	if err != nil {
		b.InferenceErrors.Add(1)
	}
}

// RecordDivergence implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDivergence(maxDiff float64, exceeded bool) {
	b.DivergenceChecks.Add(1)
	if exceeded {
		b.DivergenceAlerts.Add(1)
	}
	for {
		old := b.maxDivergenceBits.Load()
		if maxDiff <= math.Float64frombits(old) || b.maxDivergenceBits.CompareAndSwap(old, math.Float64bits(maxDiff)) {
			return
		}
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FitCount:         b.FitCount.Load(),
		FitErrors:        b.FitErrors.Load(),
		FitAvgNanos:      b.getAvgFitNanos(),
		FitRows:          b.FitRows.Load(),
		SessionsOpened:   b.SessionsOpened.Load(),
		SessionsClosed:   b.SessionsClosed.Load(),
		SessionErrors:    b.SessionErrors.Load(),
		InferenceCount:   b.InferenceCount.Load(),
		InferenceErrors:  b.InferenceErrors.Load(),
		InferenceShards:  b.InferenceShards.Load(),
		DivergenceChecks: b.DivergenceChecks.Load(),
		DivergenceAlerts: b.DivergenceAlerts.Load(),
		MaxDivergence:    math.Float64frombits(b.maxDivergenceBits.Load()),
	}
}

func (b *BasicMetricsCollector) getAvgFitNanos() int64 {
	count := b.FitCount.Load()
	if count == 0 {
		return 0
	}
	return b.FitTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FitCount         int64
	FitErrors        int64
	FitAvgNanos      int64
	FitRows          int64
	SessionsOpened   int64
	SessionsClosed   int64
	SessionErrors    int64
	InferenceCount   int64
	InferenceErrors  int64
	InferenceShards  int64
	DivergenceChecks int64
	DivergenceAlerts int64
	MaxDivergence    float64
}
