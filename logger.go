package mgkmeans

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/mgkmeans/comms"
	"github.com/hupe1980/mgkmeans/model"
)

// Logger wraps slog.Logger with mgkmeans-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithSession adds a session_id field.
func (l *Logger) WithSession(id comms.SessionID) *Logger {
	return &Logger{Logger: l.Logger.With("session_id", string(id))}
}

// WithWorker adds a worker field.
func (l *Logger) WithWorker(w model.WorkerID) *Logger {
	return &Logger{Logger: l.Logger.With("worker", string(w))}
}

// WithOp adds an op field.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{Logger: l.Logger.With("op", op)}
}

// LogFit logs the outcome of a fit.
func (l *Logger) LogFit(ctx context.Context, workers, rows int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"workers", workers,
			"rows", rows,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fit completed",
			"workers", workers,
			"rows", rows,
			"duration", duration,
		)
	}
}

// LogSession logs a session lifecycle event.
func (l *Logger) LogSession(ctx context.Context, event string, workers int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "comms session "+event+" failed",
			"workers", workers,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "comms session "+event,
			"workers", workers,
		)
	}
}

// LogInference logs the outcome of an inference pass.
func (l *Logger) LogInference(ctx context.Context, op string, shards int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"shards", shards,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"shards", shards,
		)
	}
}

// LogDivergence warns about centroids that differ across workers.
func (l *Logger) LogDivergence(ctx context.Context, maxDiff, tolerance float64) {
	l.WarnContext(ctx, "centroids diverge across workers",
		"max_diff", maxDiff,
		"tolerance", tolerance,
	)
}
