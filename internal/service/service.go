// Package service provides the main application service that integrates all components.
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/panda-miner/internal/metrics"
	"github.com/panda-miner/internal/miner"
	"github.com/panda-miner/internal/repository"
	"github.com/panda-miner/internal/scheduler"
	"github.com/panda-miner/internal/scheduler/source"
	"github.com/panda-miner/internal/storage"
	"github.com/panda-miner/pkg/compression"
	"github.com/panda-miner/pkg/config"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/telemetry"
	"github.com/panda-miner/pkg/utils"
)

// Service is the main application service.
type Service struct {
	config    *config.Config
	logger    utils.Logger
	db        *repository.Repositories
	storage   storage.Storage
	miner     *miner.PandaMiner
	metrics   *metrics.Collector
	scheduler *scheduler.Scheduler

	// sources holds all task sources
	sources []source.TaskSource
	// aggregator aggregates multiple sources into a single channel
	aggregator *source.Aggregator

	metricsServer   *metrics.Server
	shutdownTracing telemetry.ShutdownFunc

	mu      sync.Mutex
	running bool
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "config is required")
	}
	if logger == nil {
		logger = utils.NewLogrusLogger(utils.LevelInfo, os.Stdout, "text")
	}

	return &Service{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewCollector(),
	}, nil
}

// NewLogger builds the logger described by cfg. An output path selects a
// log file, otherwise logs go to stdout.
func NewLogger(cfg config.LogConfig) (utils.Logger, error) {
	level := utils.ParseLogLevel(cfg.Level)
	if cfg.OutputPath != "" {
		logger, err := utils.NewFileLogger(level, cfg.OutputPath, cfg.Format)
		if err != nil {
			return nil, err
		}
		return logger, nil
	}
	return utils.NewLogrusLogger(level, os.Stdout, cfg.Format), nil
}

// Initialize initializes all service components.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		s.logger.Warn("Tracing disabled: %v", err)
	}
	s.shutdownTracing = shutdown

	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := s.initMiner(); err != nil {
		return fmt.Errorf("failed to initialize miner: %w", err)
	}

	if err := s.initScheduler(); err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	if s.config.Metrics.Enabled {
		s.metricsServer = metrics.NewServer(s.metrics, s.config.Metrics.Addr, s.config.Metrics.Path, s.logger)
	}

	s.logger.Info("Service components initialized successfully")
	return nil
}

// initDatabase connects, migrates the schema and builds the repositories.
func (s *Service) initDatabase() error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	gormDB, err := repository.NewGormDB(&s.config.Database)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(gormDB); err != nil {
		return err
	}

	s.db = repository.NewRepositories(gormDB, s.config.Mining.Version)
	s.logger.Info("Database connection established")

	return nil
}

// initStorage initializes the object storage.
func (s *Service) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}

	s.storage = store
	s.logger.Info("Storage initialized")

	return nil
}

// MiningDefaults returns the per-task defaults configured under mining.
func MiningDefaults(cfg *config.MiningConfig) model.MiningParams {
	return model.MiningParams{
		Profile:        cfg.Profile,
		MaxK:           cfg.MaxK,
		MaxRowNoise:    cfg.MaxRowNoise,
		MaxColumnNoise: cfg.MaxColumnNoise,
		CostModel:      cfg.CostModel,
		TimeoutSeconds: cfg.Timeout,
	}
}

// initMiner builds the miner and checks the configured defaults once, so a
// bad profile or cost model fails at startup rather than on every task.
func (s *Service) initMiner() error {
	defaults := MiningDefaults(&s.config.Mining)
	opts, err := miner.Resolve(model.MiningParams{}, defaults)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "invalid mining defaults", err)
	}
	s.logger.Info("Mining defaults: %s", opts)

	s.miner = miner.NewPandaMiner(&miner.Config{
		Defaults: defaults,
		Logger:   s.logger,
		Recorder: s.metrics,
		Version:  s.config.Mining.Version,
	})
	return nil
}

// initScheduler initializes the task scheduler.
func (s *Service) initScheduler() error {
	s.logger.Info("Initializing scheduler...")

	if err := s.initSources(); err != nil {
		return fmt.Errorf("failed to initialize sources: %w", err)
	}

	processor := scheduler.NewMiningProcessor(&scheduler.ProcessorConfig{
		Storage:           s.storage,
		Tasks:             s.db.Task,
		Results:           s.db.Result,
		Miner:             s.miner,
		ResultCompression: compression.TypeZstd,
		Logger:            s.logger,
	})

	s.scheduler = scheduler.New(scheduler.FromConfig(&s.config.Scheduler), s.aggregator, processor, s.logger)
	s.scheduler.SetObserver(s.metrics)

	s.logger.Info("Scheduler initialized")
	return nil
}

// initSources initializes task sources based on configuration.
func (s *Service) initSources() error {
	s.logger.Info("Initializing task sources...")

	var sourceConfigs []*source.SourceConfig
	for _, cfg := range s.config.Sources {
		if !cfg.Enabled {
			s.logger.Info("Source %s (%s) is disabled, skipping", cfg.Name, cfg.Type)
			continue
		}
		sourceConfigs = append(sourceConfigs, source.FromConfig(cfg))
	}

	// If no sources configured, use default database source
	if len(sourceConfigs) == 0 {
		s.logger.Info("No sources configured, using default database source")
		sourceConfigs = append(sourceConfigs, &source.SourceConfig{
			Type:    source.SourceTypeDB,
			Name:    "default-db",
			Enabled: true,
			Options: map[string]interface{}{
				"poll_interval": s.config.Scheduler.PollInterval,
				"batch_size":    s.config.Scheduler.TaskBatchSize,
			},
		})
	}

	sources, err := source.CreateSources(sourceConfigs, source.Deps{
		Tasks:   s.db.Task,
		Results: s.db.Result,
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}

	s.sources = sources
	s.aggregator = source.NewAggregator(sources, s.config.Scheduler.TaskBatchSize*2, s.logger)

	s.logger.Info("Initialized %d task sources", len(sources))
	for _, src := range sources {
		s.logger.Info("  - %s (%s)", src.Name(), src.Type())
	}

	return nil
}

// Start starts the service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return apperrors.New(apperrors.CodeConfigError, "service is not initialized")
	}

	s.logger.Info("Starting service...")

	if s.metricsServer != nil {
		s.metricsServer.Start()
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	s.running = true
	s.logger.Info("Service started successfully")

	return nil
}

// Stop stops the service gracefully. Running tasks are allowed to finish;
// cancel the context passed to Start to abort them.
func (s *Service) Stop() error {
	s.logger.Info("Stopping service...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(ctx); err != nil {
			s.logger.Error("Failed to stop metrics server: %v", err)
		}
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Error("Failed to flush traces: %v", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("Service stopped")

	return nil
}

// IsRunning returns whether the service is running.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Repositories returns the database repositories once initialized.
func (s *Service) Repositories() *repository.Repositories {
	return s.db
}

// Storage returns the object storage once initialized.
func (s *Service) Storage() storage.Storage {
	return s.storage
}

// Metrics returns the service's metrics collector.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// Sources returns the configured task sources.
func (s *Service) Sources() []source.TaskSource {
	return s.sources
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{
		Running: s.IsRunning(),
		Sources: len(s.sources),
	}

	if s.scheduler != nil {
		stats.Scheduler = s.scheduler.Stats()
	}

	return stats
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}

	if s.aggregator != nil && s.IsRunning() {
		if err := s.aggregator.HealthCheck(ctx); err != nil {
			return fmt.Errorf("source health check failed: %w", err)
		}
	}

	return nil
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Running   bool                     `json:"running"`
	Sources   int                      `json:"sources"`
	Scheduler scheduler.SchedulerStats `json:"scheduler"`
}
