// Package parallel provides generic parallel processing utilities.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolConfig configures the worker pool behavior.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent workers.
	// Default: min(runtime.NumCPU(), 8)
	MaxWorkers int

	// Timeout is the maximum time for the entire operation.
	// Default: 0 (no timeout)
	Timeout time.Duration

	// CollectMetrics enables collection of execution metrics.
	CollectMetrics bool
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{MaxWorkers: workers}
}

// WithWorkers returns a new config with the specified number of workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a new config with the specified timeout.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// WithMetrics returns a new config with metrics collection enabled.
func (c PoolConfig) WithMetrics() PoolConfig {
	c.CollectMetrics = true
	return c
}

// PoolMetrics holds execution statistics.
type PoolMetrics struct {
	TotalTasks     int64
	CompletedTasks int64
	FailedTasks    int64
	SkippedTasks   int64
	TotalDuration  time.Duration
	MaxTaskTime    time.Duration
	MinTaskTime    time.Duration
}

// TaskResult holds the result of a task execution.
type TaskResult[T any, R any] struct {
	Input    T
	Result   R
	Error    error
	Duration time.Duration
}

// WorkerPool runs one function over many inputs with bounded concurrency.
// A failing input does not cancel its siblings; errors are reported per
// result.
type WorkerPool[T any, R any] struct {
	config  PoolConfig
	metrics PoolMetrics
	mu      sync.Mutex
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool[T any, R any](config PoolConfig) *WorkerPool[T, R] {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	return &WorkerPool[T, R]{config: config}
}

// ExecuteFunc applies fn to every input and returns the results in input
// order. Inputs not started before ctx ends carry ctx's error.
func (p *WorkerPool[T, R]) ExecuteFunc(ctx context.Context, inputs []T, fn func(ctx context.Context, input T) (R, error)) []TaskResult[T, R] {
	if len(inputs) == 0 {
		return nil
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	results := make([]TaskResult[T, R], len(inputs))

	var g errgroup.Group
	g.SetLimit(p.config.MaxWorkers)

	for i, input := range inputs {
		results[i].Input = input
		if err := ctx.Err(); err != nil {
			results[i].Error = err
			p.record(0, err, true)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Error = err
				p.record(0, err, true)
				return nil
			}
			taskStart := time.Now()
			r, err := fn(ctx, input)
			d := time.Since(taskStart)
			results[i].Result = r
			results[i].Error = err
			results[i].Duration = d
			p.record(d, err, false)
			return nil
		})
	}
	_ = g.Wait()

	if p.config.CollectMetrics {
		p.mu.Lock()
		p.metrics.TotalDuration = time.Since(startTime)
		p.mu.Unlock()
	}
	return results
}

func (p *WorkerPool[T, R]) record(d time.Duration, err error, skipped bool) {
	if !p.config.CollectMetrics {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.TotalTasks++
	switch {
	case skipped:
		p.metrics.SkippedTasks++
		return
	case err != nil:
		p.metrics.FailedTasks++
	default:
		p.metrics.CompletedTasks++
	}
	if d > p.metrics.MaxTaskTime {
		p.metrics.MaxTaskTime = d
	}
	if p.metrics.MinTaskTime == 0 || d < p.metrics.MinTaskTime {
		p.metrics.MinTaskTime = d
	}
}

// Metrics returns the current execution metrics.
func (p *WorkerPool[T, R]) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// ForEach runs fn over items with bounded concurrency and stops scheduling
// new items after the first error, which it returns.
func ForEach[T any](ctx context.Context, items []T, config PoolConfig, fn func(ctx context.Context, item T) error) error {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxWorkers)
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, item) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
