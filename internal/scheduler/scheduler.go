// Package scheduler dispatches mining tasks from task sources to a bounded
// set of workers.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panda-miner/internal/scheduler/source"
	"github.com/panda-miner/pkg/config"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

// Task is a mining task on its way through the scheduler.
type Task struct {
	*model.MiningTask
	Priority int // Higher value = higher priority
	event    *source.TaskEvent
}

// TaskProcessor runs one task to completion and records its terminal
// status. The returned status is used for reporting only.
type TaskProcessor interface {
	Process(ctx context.Context, task *Task) (model.TaskStatus, error)
}

// Observer receives scheduler gauges and task outcomes. internal/metrics
// provides the prometheus implementation.
type Observer interface {
	ObserveTask(status string)
	SetQueueDepth(n int)
	SetActiveWorkers(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveTask(string)   {}
func (nopObserver) SetQueueDepth(int)    {}
func (nopObserver) SetActiveWorkers(int) {}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval  time.Duration // How often sources poll for new tasks
	WorkerCount   int           // Number of concurrent workers
	PrioritySlots int           // Workers reserved for high priority tasks
	TaskBatchSize int           // Max tasks fetched per poll
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval:  2 * time.Second,
		WorkerCount:   4,
		PrioritySlots: 1,
		TaskBatchSize: 10,
	}
}

// FromConfig creates scheduler config from application config.
func FromConfig(cfg *config.SchedulerConfig) *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval:  time.Duration(cfg.PollInterval) * time.Second,
		WorkerCount:   cfg.WorkerCount,
		PrioritySlots: cfg.PrioritySlots,
		TaskBatchSize: cfg.TaskBatchSize,
	}
}

// Scheduler pulls task events from an aggregator and runs them on a fixed
// number of workers. PrioritySlots of them only take high priority tasks,
// so cheap runs are not starved by long ones.
type Scheduler struct {
	config     *SchedulerConfig
	processor  TaskProcessor
	aggregator *source.Aggregator
	logger     utils.Logger
	observer   Observer

	generalSlots  chan struct{}
	prioritySlots chan struct{}
	highQueue     chan *Task
	normalQueue   chan *Task
	active        atomic.Int32

	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Scheduler.
func New(cfg *SchedulerConfig, aggregator *source.Aggregator, processor TaskProcessor, logger utils.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.PrioritySlots < 0 || cfg.PrioritySlots >= cfg.WorkerCount {
		cfg.PrioritySlots = 0
	}
	if cfg.TaskBatchSize < 1 {
		cfg.TaskBatchSize = 1
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	s := &Scheduler{
		config:       cfg,
		aggregator:   aggregator,
		processor:    processor,
		logger:       logger,
		observer:     nopObserver{},
		generalSlots: make(chan struct{}, cfg.WorkerCount-cfg.PrioritySlots),
		highQueue:    make(chan *Task, cfg.TaskBatchSize*2),
		normalQueue:  make(chan *Task, cfg.TaskBatchSize*2),
		stopCh:       make(chan struct{}),
	}
	for i := 0; i < cap(s.generalSlots); i++ {
		s.generalSlots <- struct{}{}
	}
	if cfg.PrioritySlots > 0 {
		s.prioritySlots = make(chan struct{}, cfg.PrioritySlots)
		for i := 0; i < cfg.PrioritySlots; i++ {
			s.prioritySlots <- struct{}{}
		}
	}
	return s
}

// SetObserver installs an observer. It must be called before Start.
func (s *Scheduler) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// Start starts the sources and the dispatch loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.logger.Info("Starting scheduler with %d workers (%d reserved for priority tasks)",
		s.config.WorkerCount, s.config.PrioritySlots)

	if err := s.aggregator.Start(ctx); err != nil {
		return err
	}
	s.running = true

	s.wg.Add(3)
	go s.eventLoop(ctx)
	go s.dispatchLoop(ctx, s.highQueue, true)
	go s.dispatchLoop(ctx, s.normalQueue, false)
	return nil
}

// Stop stops accepting tasks, waits for running ones and hands queued ones
// back to their sources.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler...")
	s.stopOnce.Do(func() { close(s.stopCh) })
	if err := s.aggregator.Stop(); err != nil {
		s.logger.Warn("Failed to stop sources cleanly: %v", err)
	}
	s.wg.Wait()

	// The aggregator has closed its channel; hand back what it still buffers.
	for event := range s.aggregator.Tasks() {
		s.nack(&Task{MiningTask: event.Task, Priority: event.Priority, event: event}, "scheduler stopped")
	}
	for _, q := range []chan *Task{s.highQueue, s.normalQueue} {
		for len(q) > 0 {
			s.nack(<-q, "scheduler stopped")
		}
	}
	s.observer.SetQueueDepth(0)
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) eventLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case event, ok := <-s.aggregator.Tasks():
			if !ok {
				s.logger.Info("Aggregator channel closed")
				return
			}
			s.enqueue(&Task{MiningTask: event.Task, Priority: event.Priority, event: event})
		}
	}
}

// enqueue routes task to its priority queue, or hands it back to its source
// when that queue is full.
func (s *Scheduler) enqueue(task *Task) {
	q := s.normalQueue
	if task.Priority > 0 {
		q = s.highQueue
	}

	select {
	case q <- task:
		s.logger.Info("Queued task %d (UUID: %s, priority %d) from source %s/%s",
			task.ID, task.TaskUUID, task.Priority, task.event.SourceType, task.event.SourceName)
	default:
		s.logger.Warn("Task queue full, handing task %s back", task.TaskUUID)
		s.nack(task, "task queue full")
	}
	s.observer.SetQueueDepth(len(s.highQueue) + len(s.normalQueue))
}

// dispatchLoop takes tasks from q and starts them once a worker slot is
// free. Priority tasks may use any slot; normal tasks only general ones.
func (s *Scheduler) dispatchLoop(ctx context.Context, q chan *Task, priority bool) {
	defer s.wg.Done()

	for {
		var task *Task
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case task = <-q:
		}

		var pool chan struct{}
		if priority {
			select {
			case <-s.prioritySlots:
				pool = s.prioritySlots
			case <-s.generalSlots:
				pool = s.generalSlots
			case <-ctx.Done():
				s.nack(task, "scheduler stopped")
				return
			case <-s.stopCh:
				s.nack(task, "scheduler stopped")
				return
			}
		} else {
			select {
			case <-s.generalSlots:
				pool = s.generalSlots
			case <-ctx.Done():
				s.nack(task, "scheduler stopped")
				return
			case <-s.stopCh:
				s.nack(task, "scheduler stopped")
				return
			}
		}

		s.observer.SetQueueDepth(len(s.highQueue) + len(s.normalQueue))
		s.wg.Add(1)
		go s.processTask(ctx, task, pool)
	}
}

func (s *Scheduler) processTask(ctx context.Context, task *Task, pool chan struct{}) {
	s.observer.SetActiveWorkers(int(s.active.Add(1)))
	defer func() {
		s.observer.SetActiveWorkers(int(s.active.Add(-1)))
		pool <- struct{}{}
		s.wg.Done()
	}()

	s.logger.Info("Processing task %d (UUID: %s, dataset: %s)", task.ID, task.TaskUUID, task.DatasetKey)

	start := time.Now()
	status, err := s.processor.Process(ctx, task)
	duration := time.Since(start)
	s.observer.ObserveTask(status.String())

	if err != nil {
		s.logger.Error("Task %s %s after %v: %v", task.TaskUUID, status, duration, err)
	} else {
		s.logger.Info("Task %s %s in %v", task.TaskUUID, status, duration)
	}

	if err := s.aggregator.Ack(context.WithoutCancel(ctx), task.event); err != nil {
		s.logger.Warn("Failed to ack task %s: %v", task.TaskUUID, err)
	}
}

func (s *Scheduler) nack(task *Task, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.aggregator.Nack(ctx, task.event, reason); err != nil {
		s.logger.Error("Failed to nack task %s: %v", task.TaskUUID, err)
	}
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SchedulerStats{
		ActiveWorkers: int(s.active.Load()),
		TotalWorkers:  s.config.WorkerCount,
		QueuedTasks:   len(s.highQueue) + len(s.normalQueue),
		Running:       running,
	}
}

// SchedulerStats holds scheduler statistics.
type SchedulerStats struct {
	ActiveWorkers int  `json:"active_workers"`
	TotalWorkers  int  `json:"total_workers"`
	QueuedTasks   int  `json:"queued_tasks"`
	Running       bool `json:"running"`
}
