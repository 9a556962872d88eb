package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/panda-miner/pkg/utils"
)

// Aggregator merges several TaskSources into a single task channel.
type Aggregator struct {
	sources    []TaskSource
	sourceMap  map[string]TaskSource // key: "type:name"
	outputChan chan *TaskEvent
	logger     utils.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	forwards errgroup.Group
}

// NewAggregator creates a new Aggregator with the given sources.
func NewAggregator(sources []TaskSource, bufferSize int, logger utils.Logger) *Aggregator {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	sourceMap := make(map[string]TaskSource, len(sources))
	for _, src := range sources {
		sourceMap[buildSourceKey(src.Type(), src.Name())] = src
	}

	return &Aggregator{
		sources:    sources,
		sourceMap:  sourceMap,
		outputChan: make(chan *TaskEvent, bufferSize),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

func buildSourceKey(sourceType SourceType, name string) string {
	return string(sourceType) + ":" + name
}

// Start starts all sources concurrently. If any source fails to start, the
// ones already started are stopped again and the first error is returned.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	a.logger.Info("Starting aggregator with %d sources", len(a.sources))

	var g errgroup.Group
	started := make([]bool, len(a.sources))
	for i, src := range a.sources {
		g.Go(func() error {
			if err := src.Start(ctx); err != nil {
				return fmt.Errorf("source %s/%s: %w", src.Type(), src.Name(), err)
			}
			started[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for i, src := range a.sources {
			if started[i] {
				_ = src.Stop()
			}
		}
		return err
	}

	for _, src := range a.sources {
		a.logger.Info("Started source: %s/%s", src.Type(), src.Name())
		a.forwards.Go(func() error {
			a.forward(ctx, src)
			return nil
		})
	}
	a.running = true
	return nil
}

// forward copies events of one source to the output channel.
func (a *Aggregator) forward(ctx context.Context, src TaskSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case event, ok := <-src.Tasks():
			if !ok {
				a.logger.Info("Source %s/%s channel closed", src.Type(), src.Name())
				return
			}

			event.SourceType = src.Type()
			event.SourceName = src.Name()

			select {
			case a.outputChan <- event:
			case <-ctx.Done():
				a.handBack(src, event, "context cancelled")
				return
			case <-a.stopCh:
				a.handBack(src, event, "aggregator stopped")
				return
			}
		}
	}
}

// handBack returns an event that was read but never delivered. The source's
// own context may already be done, so a fresh one is used.
func (a *Aggregator) handBack(src TaskSource, event *TaskEvent, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Nack(ctx, event, reason); err != nil {
		a.logger.Warn("Failed to hand back task %s to %s/%s: %v", event.ID, src.Type(), src.Name(), err)
	}
}

// Stop stops all sources and closes the output channel.
func (a *Aggregator) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.logger.Info("Stopping aggregator...")
	close(a.stopCh)

	var errs errgroup.Group
	for _, src := range a.sources {
		errs.Go(func() error {
			if err := src.Stop(); err != nil {
				a.logger.Error("Failed to stop source %s/%s: %v", src.Type(), src.Name(), err)
				return err
			}
			return nil
		})
	}
	err := errs.Wait()

	_ = a.forwards.Wait()
	close(a.outputChan)

	a.logger.Info("Aggregator stopped")
	return err
}

// Tasks returns the aggregated task channel.
func (a *Aggregator) Tasks() <-chan *TaskEvent {
	return a.outputChan
}

// Pending returns the number of events buffered in the output channel.
func (a *Aggregator) Pending() int {
	return len(a.outputChan)
}

// GetSource retrieves a specific source by type and name.
func (a *Aggregator) GetSource(sourceType SourceType, name string) TaskSource {
	return a.sourceMap[buildSourceKey(sourceType, name)]
}

// Ack acknowledges a task event by delegating to the appropriate source.
func (a *Aggregator) Ack(ctx context.Context, event *TaskEvent) error {
	src := a.GetSource(event.SourceType, event.SourceName)
	if src == nil {
		return nil
	}
	return src.Ack(ctx, event)
}

// Nack rejects a task event by delegating to the appropriate source.
func (a *Aggregator) Nack(ctx context.Context, event *TaskEvent, reason string) error {
	src := a.GetSource(event.SourceType, event.SourceName)
	if src == nil {
		return nil
	}
	return src.Nack(ctx, event, reason)
}

// HealthCheck checks all sources concurrently and returns the first failure.
func (a *Aggregator) HealthCheck(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		g.Go(func() error { return src.HealthCheck(ctx) })
	}
	return g.Wait()
}

// Sources returns all registered sources.
func (a *Aggregator) Sources() []TaskSource {
	return a.sources
}
