package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panda-miner/internal/repository"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

// SourceTypeDB is the source type constant for database source.
const SourceTypeDB SourceType = "database"

func init() {
	Register(SourceTypeDB, NewDatabaseSource)
}

// DatabaseOptions holds database source specific configuration.
type DatabaseOptions struct {
	// PollInterval is how often to poll for new tasks.
	PollInterval time.Duration

	// BatchSize is the maximum number of tasks to fetch per poll.
	BatchSize int
}

// DefaultDatabaseOptions returns the default options.
func DefaultDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		PollInterval: 2 * time.Second,
		BatchSize:    10,
	}
}

// DatabaseSource polls the task table for pending tasks and claims them
// with a row lock, so several miners can share one database.
type DatabaseSource struct {
	name     string
	options  *DatabaseOptions
	logger   utils.Logger
	taskRepo repository.TaskRepository

	taskChan chan *TaskEvent
	stopCh   chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	running bool
}

// NewDatabaseSource creates a new database source from configuration.
func NewDatabaseSource(cfg *SourceConfig, deps Deps) (TaskSource, error) {
	if deps.Tasks == nil {
		return nil, fmt.Errorf("database source %q requires a task repository", cfg.Name)
	}
	opts := &DatabaseOptions{
		PollInterval: cfg.GetDuration("poll_interval", 2*time.Second),
		BatchSize:    cfg.GetInt("batch_size", 10),
	}
	return NewDatabaseSourceWithDeps(cfg.Name, opts, deps.Tasks, deps.logger()), nil
}

// NewDatabaseSourceWithDeps creates a new database source with explicit dependencies.
func NewDatabaseSourceWithDeps(name string, opts *DatabaseOptions, taskRepo repository.TaskRepository, logger utils.Logger) *DatabaseSource {
	if opts == nil {
		opts = DefaultDatabaseOptions()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	return &DatabaseSource{
		name:     name,
		options:  opts,
		logger:   logger,
		taskRepo: taskRepo,
		taskChan: make(chan *TaskEvent, opts.BatchSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Type returns the source type.
func (s *DatabaseSource) Type() SourceType {
	return SourceTypeDB
}

// Name returns the source instance name.
func (s *DatabaseSource) Name() string {
	return s.name
}

// Start starts the database polling loop.
func (s *DatabaseSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	s.logger.Info("Database source %s starting with poll_interval=%v, batch_size=%d",
		s.name, s.options.PollInterval, s.options.BatchSize)

	go s.pollLoop(ctx)
	return nil
}

// Stop stops the polling loop and releases claimed tasks not yet handed
// over.
func (s *DatabaseSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.done

	for {
		select {
		case event := <-s.taskChan:
			s.release(event.Task, "source stopped")
		default:
			return nil
		}
	}
}

// Tasks returns the task event channel.
func (s *DatabaseSource) Tasks() <-chan *TaskEvent {
	return s.taskChan
}

// Ack is a no-op: the processor writes the terminal status itself.
func (s *DatabaseSource) Ack(ctx context.Context, event *TaskEvent) error {
	s.logger.Debug("Database source %s acked task %s", s.name, event.ID)
	return nil
}

// Nack releases the claim so the task is picked up by a later poll.
func (s *DatabaseSource) Nack(ctx context.Context, event *TaskEvent, reason string) error {
	if event.Task == nil || event.Task.ID == 0 {
		return nil
	}
	return s.taskRepo.UpdateStatusWithInfo(ctx, event.Task.ID, model.TaskStatusPending, reason)
}

// HealthCheck checks the database connection.
func (s *DatabaseSource) HealthCheck(ctx context.Context) error {
	_, err := s.taskRepo.GetPendingTasks(ctx, 1)
	return err
}

func (s *DatabaseSource) pollLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.options.PollInterval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll claims up to BatchSize pending tasks. It only claims as many tasks as
// the channel has room for, so nothing is locked and then dropped.
func (s *DatabaseSource) poll(ctx context.Context) {
	room := cap(s.taskChan) - len(s.taskChan)
	if room <= 0 {
		return
	}

	tasks, err := s.taskRepo.GetPendingTasks(ctx, room)
	if err != nil {
		s.logger.Error("Database source %s failed to fetch tasks: %v", s.name, err)
		return
	}

	for _, task := range tasks {
		locked, err := s.taskRepo.LockTaskForMining(ctx, task.ID)
		if err != nil {
			s.logger.Error("Database source %s failed to lock task %d: %v", s.name, task.ID, err)
			continue
		}
		if !locked {
			continue // claimed by another instance
		}
		task.Status = model.TaskStatusRunning

		event := NewTaskEvent(task, SourceTypeDB, s.name).
			WithMetadata("locked_at", time.Now().Format(time.RFC3339))

		select {
		case s.taskChan <- event:
			s.logger.Debug("Database source %s emitted task %s", s.name, task.TaskUUID)
		case <-ctx.Done():
			s.release(task, "shutdown before dispatch")
			return
		case <-s.stopCh:
			s.release(task, "shutdown before dispatch")
			return
		}
	}
}

func (s *DatabaseSource) release(task *model.MiningTask, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.taskRepo.UpdateStatusWithInfo(ctx, task.ID, model.TaskStatusPending, reason); err != nil {
		s.logger.Warn("Database source %s failed to release task %d: %v", s.name, task.ID, err)
	}
}
