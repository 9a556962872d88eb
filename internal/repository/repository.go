// Package repository persists mining tasks and results.
package repository

import (
	"context"

	"github.com/panda-miner/pkg/model"
)

// TaskRepository defines the interface for task-related database operations.
type TaskRepository interface {
	// CreateTask inserts a pending task and fills in its ID.
	CreateTask(ctx context.Context, task *model.MiningTask) error

	// GetPendingTasks retrieves tasks waiting to be mined, oldest first.
	GetPendingTasks(ctx context.Context, limit int) ([]*model.MiningTask, error)

	// GetTaskByID retrieves a task by its ID.
	GetTaskByID(ctx context.Context, id int64) (*model.MiningTask, error)

	// GetTaskByUUID retrieves a task by its UUID.
	GetTaskByUUID(ctx context.Context, uuid string) (*model.MiningTask, error)

	// UpdateStatus updates the status of a task.
	UpdateStatus(ctx context.Context, id int64, status model.TaskStatus) error

	// UpdateStatusWithInfo updates the status with additional info. A
	// terminal status also stamps the end time.
	UpdateStatusWithInfo(ctx context.Context, id int64, status model.TaskStatus, info string) error

	// SetResultKey records where the result document was uploaded.
	SetResultKey(ctx context.Context, id int64, key string) error

	// LockTaskForMining moves a pending task to running. It returns false
	// when another worker got there first.
	LockTaskForMining(ctx context.Context, id int64) (bool, error)
}

// ResultRepository defines the interface for mining result operations.
type ResultRepository interface {
	// SaveResult stores a result, replacing any earlier one for the task.
	SaveResult(ctx context.Context, result *model.MiningResult) error

	// GetResultByTaskUUID retrieves the mining result for a task.
	GetResultByTaskUUID(ctx context.Context, taskUUID string) (*model.MiningResult, error)

	// ListResults returns the latest results for a dataset, newest first.
	// An empty dataset name lists all datasets.
	ListResults(ctx context.Context, dataset string, limit int) ([]*model.MiningResult, error)
}
