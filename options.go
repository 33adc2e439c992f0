package mgkmeans

import (
	"log/slog"
	"time"

	"github.com/hupe1980/mgkmeans/codec"
	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/dispatch"
	"github.com/hupe1980/mgkmeans/engine"
)

// DefaultFitTimeout is the fit barrier timeout used unless WithFitTimeout
// overrides it.
const DefaultFitTimeout = dispatch.DefaultTimeout

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	fitTimeout       time.Duration
	inferenceTimeout time.Duration
	comms            comms.Manager
	engine           engine.Engine
	compression      codec.Compression
	centroidCheck    bool
	strictCheck      bool
	checkTolerance   float64
}

// Option configures a KMeans estimator.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &mgkmeans.BasicMetricsCollector{}
//	km, _ := mgkmeans.New(pool, params, mgkmeans.WithMetricsCollector(metrics))
//	// ... fit, predict ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := mgkmeans.NewJSONLogger(slog.LevelInfo)
//	km, _ := mgkmeans.New(pool, params, mgkmeans.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFitTimeout bounds the fan-in barrier of a fit round. Workers that have
// not finished by then fail with ErrBarrierTimeout. Defaults to
// DefaultFitTimeout; a negative value waits for as long as the context allows.
func WithFitTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fitTimeout = d
	}
}

// WithInferenceTimeout bounds how long Compute and Score wait for their jobs.
func WithInferenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.inferenceTimeout = d
	}
}

// WithCommsManager replaces the in-process session registry.
func WithCommsManager(m comms.Manager) Option {
	return func(o *options) {
		o.comms = m
	}
}

// WithEngine replaces the reference Lloyd engine.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithCompression sets the frame compression of the default session registry.
// It has no effect together with WithCommsManager.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCentroidCheck compares every worker's centroids against the selected
// model after each fit and logs divergence above tol.
func WithCentroidCheck(tol float64) Option {
	return func(o *options) {
		o.centroidCheck = true
		o.checkTolerance = tol
	}
}

// WithStrictCentroidCheck is WithCentroidCheck, but divergence above tol
// fails the fit with a *CentroidDivergenceError.
func WithStrictCentroidCheck(tol float64) Option {
	return func(o *options) {
		o.centroidCheck = true
		o.strictCheck = true
		o.checkTolerance = tol
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fitTimeout:       DefaultFitTimeout,
		compression:      codec.CompressionNone,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
