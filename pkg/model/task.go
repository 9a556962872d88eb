// Package model defines the core data structures used throughout the application.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DatasetFormat identifies how a dataset file is laid out.
type DatasetFormat string

const (
	// FormatBasket is the FIMI layout: one transaction per line, items
	// separated by whitespace.
	FormatBasket DatasetFormat = "basket"
	// FormatMatrix is a 0/1 CSV table whose header names the items.
	FormatMatrix DatasetFormat = "matrix"
)

// ParseDatasetFormat maps a name or file extension to a format. Unknown
// values fall back to FormatBasket.
func ParseDatasetFormat(s string) DatasetFormat {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "matrix", "csv":
		return FormatMatrix
	default:
		return FormatBasket
	}
}

// TaskStatus represents the status of a mining task.
type TaskStatus int

const (
	TaskStatusPending   TaskStatus = 0
	TaskStatusRunning   TaskStatus = 1
	TaskStatusCompleted TaskStatus = 2
	TaskStatusFailed    TaskStatus = 3
	TaskStatusEmpty     TaskStatus = 5 // dataset had nothing to mine
)

// String returns the string representation of TaskStatus.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusRunning:
		return "running"
	case TaskStatusCompleted:
		return "completed"
	case TaskStatusFailed:
		return "failed"
	case TaskStatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the task will not change status again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusEmpty
}

// MiningParams holds the knobs of one PANDA run. Zero values are filled in
// from the selected profile.
type MiningParams struct {
	Profile        string  `json:"profile,omitempty"`
	MaxK           int     `json:"max_k,omitempty"`
	MaxRowNoise    float64 `json:"max_row_noise"`
	MaxColumnNoise float64 `json:"max_column_noise"`
	CostModel      string  `json:"cost_model,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
}

// MiningTask is a request to mine one dataset.
type MiningTask struct {
	ID         int64         `json:"id"`
	TaskUUID   string        `json:"tid"`
	Status     TaskStatus    `json:"status"`
	StatusInfo string        `json:"status_info,omitempty"`
	DatasetKey string        `json:"dataset_key"`
	Format     DatasetFormat `json:"format"`
	Params     MiningParams  `json:"params"`
	ResultKey  string        `json:"result_key,omitempty"`
	UserName   string        `json:"user_name,omitempty"`
	CreateTime time.Time     `json:"create_time"`
	BeginTime  *time.Time    `json:"begin_time,omitempty"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
}

// NewMiningTask creates a pending task with a fresh UUID.
func NewMiningTask(datasetKey string, format DatasetFormat, params MiningParams) *MiningTask {
	return &MiningTask{
		TaskUUID:   uuid.NewString(),
		Status:     TaskStatusPending,
		DatasetKey: datasetKey,
		Format:     format,
		Params:     params,
		CreateTime: time.Now(),
	}
}

// IsHighPriority returns true for cheap runs: the quick profile or a small
// pattern budget.
func (t *MiningTask) IsHighPriority() bool {
	if t.Params.Profile == "quick" {
		return true
	}
	return t.Params.MaxK > 0 && t.Params.MaxK <= 10
}

// DefaultResultKey returns the storage key the result document of the task
// is uploaded to when ResultKey is not set.
func (t *MiningTask) DefaultResultKey() string {
	if t.ResultKey != "" {
		return t.ResultKey
	}
	return t.TaskUUID + "/result.json.zst"
}
