// Package config provides configuration management for the panda-miner service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// PANDA_MINING_MAX_K.
const EnvPrefix = "PANDA"

// Config holds all configuration for the application.
type Config struct {
	Mining    MiningConfig    `mapstructure:"mining" yaml:"mining"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Sources   []SourceConfig  `mapstructure:"sources" yaml:"sources"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Sweep     SweepConfig     `mapstructure:"sweep" yaml:"sweep"`
}

// MiningConfig holds the default PANDA parameters.
type MiningConfig struct {
	Version        string  `mapstructure:"version" yaml:"version"`
	DataDir        string  `mapstructure:"data_dir" yaml:"data_dir"`
	Profile        string  `mapstructure:"profile" yaml:"profile"`
	MaxK           int     `mapstructure:"max_k" yaml:"max_k"`
	MaxRowNoise    float64 `mapstructure:"max_row_noise" yaml:"max_row_noise"`
	MaxColumnNoise float64 `mapstructure:"max_column_noise" yaml:"max_column_noise"`
	CostModel      string  `mapstructure:"cost_model" yaml:"cost_model"`
	Timeout        int     `mapstructure:"timeout" yaml:"timeout"` // in seconds, 0 = none
}

// TimeoutDuration returns Timeout as a duration.
func (m MiningConfig) TimeoutDuration() time.Duration {
	return time.Duration(m.Timeout) * time.Second
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type" yaml:"type"` // postgres, mysql or sqlite
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type" yaml:"type"` // cos or local
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	SecretID  string `mapstructure:"secret_id" yaml:"secret_id"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Domain    string `mapstructure:"domain" yaml:"domain"` // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme" yaml:"scheme"` // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path" yaml:"local_path"`
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval  int `mapstructure:"poll_interval" yaml:"poll_interval"` // in seconds
	WorkerCount   int `mapstructure:"worker_count" yaml:"worker_count"`
	PrioritySlots int `mapstructure:"priority_slots" yaml:"priority_slots"`
	TaskBatchSize int `mapstructure:"task_batch_size" yaml:"task_batch_size"`
}

// SourceConfig configures one task source.
type SourceConfig struct {
	Type    string                 `mapstructure:"type" yaml:"type"`
	Name    string                 `mapstructure:"name" yaml:"name"`
	Enabled bool                   `mapstructure:"enabled" yaml:"enabled"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	Format     string `mapstructure:"format" yaml:"format"` // json or text
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// SweepConfig is the noise grid explored by a parameter sweep.
type SweepConfig struct {
	Workers     int       `mapstructure:"workers" yaml:"workers"`
	RowNoise    []float64 `mapstructure:"row_noise" yaml:"row_noise"`
	ColumnNoise []float64 `mapstructure:"column_noise" yaml:"column_noise"`
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/panda-miner")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	cfg, _ := LoadFromReader("yaml", nil)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mining.version", "1.0.0")
	v.SetDefault("mining.data_dir", "./data")
	v.SetDefault("mining.profile", "standard")
	v.SetDefault("mining.max_k", 0)
	v.SetDefault("mining.max_row_noise", 0.0)
	v.SetDefault("mining.max_column_noise", 0.0)
	v.SetDefault("mining.cost_model", "size")
	v.SetDefault("mining.timeout", 0)

	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./storage")

	v.SetDefault("scheduler.poll_interval", 2)
	v.SetDefault("scheduler.worker_count", 4)
	v.SetDefault("scheduler.priority_slots", 1)
	v.SetDefault("scheduler.task_batch_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9102")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("sweep.workers", 4)
	v.SetDefault("sweep.row_noise", []float64{0, 0.1, 0.2, 0.3})
	v.SetDefault("sweep.column_noise", []float64{0, 0.1, 0.2, 0.3})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	case "sqlite":
		if c.Database.Database == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Scheduler.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Scheduler.PrioritySlots < 0 || c.Scheduler.PrioritySlots > c.Scheduler.WorkerCount {
		return fmt.Errorf("priority slots must be between 0 and worker count")
	}

	if c.Mining.MaxK < 0 {
		return fmt.Errorf("mining.max_k must not be negative")
	}
	for name, v := range map[string]float64{
		"mining.max_row_noise":    c.Mining.MaxRowNoise,
		"mining.max_column_noise": c.Mining.MaxColumnNoise,
	} {
		if v < 0 || v >= 1 {
			return fmt.Errorf("%s must be in [0,1), got %v", name, v)
		}
	}
	for _, grid := range [][]float64{c.Sweep.RowNoise, c.Sweep.ColumnNoise} {
		for _, v := range grid {
			if v < 0 || v >= 1 {
				return fmt.Errorf("sweep noise values must be in [0,1), got %v", v)
			}
		}
	}

	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	if c.Mining.DataDir == "" {
		return nil
	}
	return os.MkdirAll(c.Mining.DataDir, 0755)
}

// GetTaskDir returns the task-specific working directory.
func (c *Config) GetTaskDir(taskUUID string) string {
	return filepath.Join(c.Mining.DataDir, taskUUID)
}
