package model

import "time"

// PatternResult is one committed tile of a mining run.
type PatternResult struct {
	Rank           int      `json:"rank"`
	Items          []string `json:"items"`
	Transactions   []int    `json:"transactions"`
	Area           int      `json:"area"`
	FalsePositives int      `json:"false_positives"`
	Cost           float64  `json:"cost"`
	// Support is the dataset-wide transaction count of each item, in item
	// order.
	Support []int `json:"support,omitempty"`
	// RowShare is the fraction of the dataset's transactions the tile spans.
	RowShare float64 `json:"row_share"`
}

// Density is the fraction of the tile's cells actually present.
func (p PatternResult) Density() float64 {
	if p.Area == 0 {
		return 0
	}
	return float64(p.Area-p.FalsePositives) / float64(p.Area)
}

// DatasetSummary describes the shape of a mined dataset.
type DatasetSummary struct {
	Name         string  `json:"name"`
	Transactions int     `json:"transactions"`
	Items        int     `json:"items"`
	Elements     int     `json:"elements"`
	Density      float64 `json:"density"`
}

// MiningResult is the document produced by one mining run.
type MiningResult struct {
	TaskUUID      string          `json:"tid,omitempty"`
	Dataset       DatasetSummary  `json:"dataset"`
	Params        MiningParams    `json:"params"`
	Patterns      []PatternResult `json:"patterns"`
	InitialCost   float64         `json:"initial_cost"`
	FinalCost     float64         `json:"final_cost"`
	ResidualCount int             `json:"residual_count"`
	TotalArea     int             `json:"total_area"`
	Iterations    int             `json:"iterations"`
	StopReason    string          `json:"stop_reason"`
	Duration      time.Duration   `json:"duration_ns"`
	MinedAt       time.Time       `json:"mined_at"`
	Version       string          `json:"version,omitempty"`
}

// CompressionRatio is FinalCost / InitialCost; lower is better.
func (r *MiningResult) CompressionRatio() float64 {
	if r.InitialCost == 0 {
		return 1
	}
	return r.FinalCost / r.InitialCost
}

// Coverage is the fraction of the dataset's elements explained by the
// committed patterns.
func (r *MiningResult) Coverage() float64 {
	if r.Dataset.Elements == 0 {
		return 0
	}
	return float64(r.Dataset.Elements-r.ResidualCount) / float64(r.Dataset.Elements)
}

// SweepEntry is one grid point of a parameter sweep.
type SweepEntry struct {
	MaxRowNoise    float64 `json:"max_row_noise"`
	MaxColumnNoise float64 `json:"max_column_noise"`
	Patterns       int     `json:"patterns"`
	FinalCost      float64 `json:"final_cost"`
	Coverage       float64 `json:"coverage"`
	StopReason     string  `json:"stop_reason"`
	Error          string  `json:"error,omitempty"`
}

// SweepResult collects the grid ranked by final cost, best first.
type SweepResult struct {
	Dataset DatasetSummary `json:"dataset"`
	Entries []SweepEntry   `json:"entries"`
}

// Best returns the lowest-cost successful entry.
func (s *SweepResult) Best() (SweepEntry, bool) {
	for _, e := range s.Entries {
		if e.Error == "" {
			return e, true
		}
	}
	return SweepEntry{}, false
}
