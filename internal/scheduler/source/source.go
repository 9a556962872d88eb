// Package source delivers mining tasks to the scheduler. Each source type
// (database, http) registers a constructor and implements TaskSource.
package source

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/panda-miner/internal/repository"
	"github.com/panda-miner/pkg/config"
	"github.com/panda-miner/pkg/utils"
)

// SourceType defines the type of task source.
// Each strategy implementation defines its own constant.
type SourceType string

// TaskSource produces task events until stopped.
type TaskSource interface {
	// Type returns the source type constant defined by the strategy.
	Type() SourceType

	// Name returns the instance name (for distinguishing multiple instances of the same type).
	Name() string

	// Start starts the task source.
	Start(ctx context.Context) error

	// Stop stops the task source gracefully.
	Stop() error

	// Tasks returns a channel that emits task events.
	Tasks() <-chan *TaskEvent

	// Ack reports that the task was processed. The processor has already
	// recorded its terminal status.
	Ack(ctx context.Context, event *TaskEvent) error

	// Nack reports that the task was not processed and should be offered
	// again.
	Nack(ctx context.Context, event *TaskEvent, reason string) error

	// HealthCheck performs a health check on the source.
	HealthCheck(ctx context.Context) error
}

// SourceConfig holds the configuration for a task source.
type SourceConfig struct {
	// Type is the source type (database, http).
	Type SourceType `yaml:"type" mapstructure:"type"`

	// Name is the unique name for this source instance.
	Name string `yaml:"name" mapstructure:"name"`

	// Enabled indicates whether this source is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Options holds source-specific configuration options.
	Options map[string]interface{} `yaml:"options" mapstructure:"options"`
}

// FromConfig converts the application source configuration.
func FromConfig(cfg config.SourceConfig) *SourceConfig {
	return &SourceConfig{
		Type:    SourceType(cfg.Type),
		Name:    cfg.Name,
		Enabled: cfg.Enabled,
		Options: cfg.Options,
	}
}

// GetString retrieves a string option with a default value.
func (c *SourceConfig) GetString(key, defaultValue string) string {
	if c.Options == nil {
		return defaultValue
	}
	if v, ok := c.Options[key].(string); ok {
		return v
	}
	return defaultValue
}

// GetInt retrieves an int option with a default value.
func (c *SourceConfig) GetInt(key string, defaultValue int) int {
	if c.Options == nil {
		return defaultValue
	}
	switch v := c.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration option with a default value.
// Accepts string (e.g., "2s") or int (seconds).
func (c *SourceConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if c.Options == nil {
		return defaultValue
	}
	switch v := c.Options[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v) * time.Second
	}
	return defaultValue
}

// Deps carries the shared collaborators a source may need.
type Deps struct {
	Tasks   repository.TaskRepository
	Results repository.ResultRepository
	Logger  utils.Logger
}

func (d Deps) logger() utils.Logger {
	if d.Logger == nil {
		return &utils.NullLogger{}
	}
	return d.Logger
}

// SourceCreator is a function that creates a TaskSource from configuration.
type SourceCreator func(cfg *SourceConfig, deps Deps) (TaskSource, error)

var (
	registry   = make(map[SourceType]SourceCreator)
	registryMu sync.RWMutex
)

// Register registers a source creator for a given source type.
// This is typically called in the init() function of each source.
func Register(sourceType SourceType, creator SourceCreator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[sourceType] = creator
}

// IsRegistered checks if a source type is registered.
func IsRegistered(sourceType SourceType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, exists := registry[sourceType]
	return exists
}

// RegisteredTypes returns all registered source types, sorted.
func RegisteredTypes() []SourceType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]SourceType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// CreateSource creates a TaskSource from the given configuration.
func CreateSource(cfg *SourceConfig, deps Deps) (TaskSource, error) {
	registryMu.RLock()
	creator, exists := registry[cfg.Type]
	registryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown source type: %s (registered types: %v)", cfg.Type, RegisteredTypes())
	}

	return creator(cfg, deps)
}

// CreateSources creates the enabled sources among configs.
func CreateSources(configs []*SourceConfig, deps Deps) ([]TaskSource, error) {
	var sources []TaskSource

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		src, err := CreateSource(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create source %q: %w", cfg.Name, err)
		}

		sources = append(sources, src)
	}

	return sources, nil
}
