package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternResult_Density(t *testing.T) {
	assert.Equal(t, 1.0, PatternResult{Area: 6}.Density())
	assert.InDelta(t, 0.75, PatternResult{Area: 8, FalsePositives: 2}.Density(), 1e-9)
	assert.Zero(t, PatternResult{}.Density())
}

func TestMiningResult_Ratios(t *testing.T) {
	r := &MiningResult{
		Dataset:       DatasetSummary{Elements: 10},
		InitialCost:   10,
		FinalCost:     6,
		ResidualCount: 1,
	}
	assert.InDelta(t, 0.6, r.CompressionRatio(), 1e-9)
	assert.InDelta(t, 0.9, r.Coverage(), 1e-9)

	empty := &MiningResult{}
	assert.Equal(t, 1.0, empty.CompressionRatio())
	assert.Zero(t, empty.Coverage())
}

func TestSweepResult_Best(t *testing.T) {
	s := &SweepResult{Entries: []SweepEntry{
		{MaxRowNoise: 0.1, Error: "boom"},
		{MaxRowNoise: 0.2, FinalCost: 4},
		{MaxRowNoise: 0.3, FinalCost: 5},
	}}

	best, ok := s.Best()
	assert.True(t, ok)
	assert.Equal(t, 0.2, best.MaxRowNoise)

	_, ok = (&SweepResult{}).Best()
	assert.False(t, ok)
}
