// Package resource bounds how much work the scheduler and the shard store run
// at once.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MaxConcurrentTasks caps tasks executing across all workers.
	MaxConcurrentTasks int64

	// SubmitsPerSecond paces task submission. Bursts of up to SubmitBurst
	// submissions pass immediately.
	SubmitsPerSecond float64
	SubmitBurst      int

	// IOBytesPerSec caps shard store throughput.
	IOBytesPerSec int64
}

// Controller hands out task slots, submission tokens and IO budget.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	taskSem *semaphore.Weighted // nil if unlimited
	running atomic.Int64

	submitLimiter *rate.Limiter
	ioLimiter     *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentTasks > 0 {
		c.taskSem = semaphore.NewWeighted(cfg.MaxConcurrentTasks)
	}

	if cfg.SubmitsPerSecond > 0 {
		burst := cfg.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		c.submitLimiter = rate.NewLimiter(rate.Limit(cfg.SubmitsPerSecond), burst)
	}

	if cfg.IOBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOBytesPerSec), int(cfg.IOBytesPerSec))
	}

	return c
}

// AcquireTask reserves a task slot, blocking until one frees up or ctx is done.
func (c *Controller) AcquireTask(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.taskSem != nil {
		if err := c.taskSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.running.Add(1)
	return nil
}

// TryAcquireTask reserves a task slot without blocking.
func (c *Controller) TryAcquireTask() bool {
	if c == nil {
		return true
	}
	if c.taskSem != nil && !c.taskSem.TryAcquire(1) {
		return false
	}
	c.running.Add(1)
	return true
}

// ReleaseTask returns a slot taken by AcquireTask or TryAcquireTask.
func (c *Controller) ReleaseTask() {
	if c == nil {
		return
	}
	if c.taskSem != nil {
		c.taskSem.Release(1)
	}
	c.running.Add(-1)
}

// RunningTasks returns the number of held task slots.
func (c *Controller) RunningTasks() int64 {
	if c == nil {
		return 0
	}
	return c.running.Load()
}

// WaitSubmit blocks until the submission rate allows another task.
func (c *Controller) WaitSubmit(ctx context.Context) error {
	if c == nil || c.submitLimiter == nil {
		return nil
	}
	return c.submitLimiter.Wait(ctx)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	// WaitN rejects requests larger than the burst.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
