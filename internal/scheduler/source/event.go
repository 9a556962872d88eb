package source

import (
	"github.com/panda-miner/pkg/model"
)

// TaskEvent is a mining task delivered by any source.
type TaskEvent struct {
	// ID is the unique identifier for this event.
	ID string

	// Task is the mining request.
	Task *model.MiningTask

	// SourceType indicates which type of source this event came from.
	SourceType SourceType

	// SourceName is the name of the source instance.
	SourceName string

	// Priority indicates the task priority (higher value = higher priority).
	Priority int

	// Metadata holds source-specific metadata.
	Metadata map[string]string
}

// NewTaskEvent creates a new TaskEvent for task. Cheap runs are marked high
// priority.
func NewTaskEvent(task *model.MiningTask, sourceType SourceType, sourceName string) *TaskEvent {
	priority := 0
	if task.IsHighPriority() {
		priority = 1
	}

	return &TaskEvent{
		ID:         task.TaskUUID,
		Task:       task,
		SourceType: sourceType,
		SourceName: sourceName,
		Priority:   priority,
		Metadata:   make(map[string]string),
	}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *TaskEvent) WithMetadata(key, value string) *TaskEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// GetMetadata retrieves a metadata value by key.
func (e *TaskEvent) GetMetadata(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}
