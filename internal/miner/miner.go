// Package miner runs PANDA over parsed datasets and shapes the outcome into
// result documents.
package miner

import (
	"context"
	"time"

	"github.com/panda-miner/internal/dataset"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

// Miner mines one dataset with the given parameters.
type Miner interface {
	// Mine runs a search. On timeout or cancellation the patterns committed
	// so far are returned together with the error.
	Mine(ctx context.Context, ds *dataset.Dataset, params model.MiningParams) (*model.MiningResult, error)

	// Name returns the name of this miner.
	Name() string
}

// Recorder receives run and pattern observations. internal/metrics
// provides the prometheus implementation.
type Recorder interface {
	ObservePattern(area, falsePositives int, cost float64)
	ObserveRun(stopReason string, elapsed time.Duration, patterns int, compressionRatio float64, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObservePattern(int, int, float64)                        {}
func (nopRecorder) ObserveRun(string, time.Duration, int, float64, error) {}

// Config holds configuration shared by miners.
type Config struct {
	// Defaults fills the zero fields of per-run parameters.
	Defaults model.MiningParams

	// Logger is used for progress logging. If nil, logs are suppressed.
	Logger utils.Logger

	// Recorder observes runs. If nil, nothing is recorded.
	Recorder Recorder

	// Version is stamped on every result.
	Version string

	// Verbose forwards per-iteration core logs at debug level.
	Verbose bool
}

// DefaultConfig returns a config with the standard profile.
func DefaultConfig() *Config {
	return &Config{
		Defaults: model.MiningParams{Profile: string(ProfileStandard)},
		Logger:   &utils.NullLogger{},
		Recorder: nopRecorder{},
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Logger == nil {
		out.Logger = &utils.NullLogger{}
	}
	if out.Recorder == nil {
		out.Recorder = nopRecorder{}
	}
	return &out
}
