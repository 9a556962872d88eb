package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
)

// GormTaskRepository implements TaskRepository using GORM.
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GormTaskRepository.
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// CreateTask inserts a task.
func (r *GormTaskRepository) CreateTask(ctx context.Context, task *model.MiningTask) error {
	record, err := newTaskRecord(task)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to encode task params", err)
	}
	if record.CreateTime.IsZero() {
		record.CreateTime = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create task", err)
	}
	task.ID = record.ID
	return nil
}

// GetPendingTasks retrieves tasks that are waiting to be mined. Rows whose
// params cannot be decoded are marked failed and left out.
func (r *GormTaskRepository) GetPendingTasks(ctx context.Context, limit int) ([]*model.MiningTask, error) {
	var records []MiningTaskRecord

	err := r.db.WithContext(ctx).
		Where("status = ?", model.TaskStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to query pending tasks", err)
	}

	tasks := make([]*model.MiningTask, 0, len(records))
	for i := range records {
		task, err := records[i].ToModel()
		if err != nil {
			if rejectErr := r.rejectPending(ctx, records[i].ID, err.Error()); rejectErr != nil {
				return nil, rejectErr
			}
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// rejectPending fails a pending task that can never be mined. Tasks already
// claimed elsewhere are left alone.
func (r *GormTaskRepository) rejectPending(ctx context.Context, id int64, info string) error {
	err := r.db.WithContext(ctx).
		Model(&MiningTaskRecord{}).
		Where("id = ? AND status = ?", id, model.TaskStatusPending).
		Updates(statusUpdates(model.TaskStatusFailed, &info)).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to reject task", err)
	}
	return nil
}

// GetTaskByID retrieves a task by its ID.
func (r *GormTaskRepository) GetTaskByID(ctx context.Context, id int64) (*model.MiningTask, error) {
	var record MiningTaskRecord

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("task not found: %d", id))
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get task", err)
	}

	return record.ToModel()
}

// GetTaskByUUID retrieves a task by its UUID.
func (r *GormTaskRepository) GetTaskByUUID(ctx context.Context, uuid string) (*model.MiningTask, error) {
	var record MiningTaskRecord

	err := r.db.WithContext(ctx).Where("tid = ?", uuid).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "task not found: "+uuid)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get task", err)
	}

	return record.ToModel()
}

// UpdateStatus updates the status of a task.
func (r *GormTaskRepository) UpdateStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	return r.update(ctx, id, statusUpdates(status, nil))
}

// UpdateStatusWithInfo updates the status with additional info.
func (r *GormTaskRepository) UpdateStatusWithInfo(ctx context.Context, id int64, status model.TaskStatus, info string) error {
	return r.update(ctx, id, statusUpdates(status, &info))
}

// SetResultKey records the storage key of the result document.
func (r *GormTaskRepository) SetResultKey(ctx context.Context, id int64, key string) error {
	return r.update(ctx, id, map[string]interface{}{"result_key": key})
}

func statusUpdates(status model.TaskStatus, info *string) map[string]interface{} {
	updates := map[string]interface{}{"status": status}
	if info != nil {
		updates["status_info"] = *info
	}
	if status.IsTerminal() {
		updates["end_time"] = time.Now()
	}
	return updates
}

func (r *GormTaskRepository) update(ctx context.Context, id int64, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&MiningTaskRecord{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update task", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("task not found: %d", id))
	}

	return nil
}

// LockTaskForMining attempts to claim a pending task using FOR UPDATE.
func (r *GormTaskRepository) LockTaskForMining(ctx context.Context, id int64) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record MiningTaskRecord

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", id, model.TaskStatusPending).
			First(&record).Error
		if err != nil {
			return err
		}

		return tx.Model(&MiningTaskRecord{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     model.TaskStatusRunning,
				"begin_time": time.Now(),
			}).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to lock task", err)
	}

	return true, nil
}

// GormResultRepository implements ResultRepository using GORM.
type GormResultRepository struct {
	db      *gorm.DB
	version string
}

// NewGormResultRepository creates a new GormResultRepository.
func NewGormResultRepository(db *gorm.DB, version string) *GormResultRepository {
	return &GormResultRepository{db: db, version: version}
}

// SaveResult upserts a mining result keyed by task UUID.
func (r *GormResultRepository) SaveResult(ctx context.Context, result *model.MiningResult) error {
	if result.TaskUUID == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "result has no task uuid")
	}

	doc, err := json.Marshal(result)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to marshal result", err)
	}

	version := result.Version
	if version == "" {
		version = r.version
	}

	record := &MiningResultRecord{
		TID:         result.TaskUUID,
		Dataset:     result.Dataset.Name,
		Patterns:    len(result.Patterns),
		InitialCost: result.InitialCost,
		FinalCost:   result.FinalCost,
		StopReason:  result.StopReason,
		DurationMS:  result.Duration.Milliseconds(),
		Result:      doc,
		Version:     version,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"dataset", "patterns", "initial_cost", "final_cost",
			"stop_reason", "duration_ms", "result", "version",
		}),
	}).Create(record).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save mining result", err)
	}

	return nil
}

// GetResultByTaskUUID retrieves the mining result for a task.
func (r *GormResultRepository) GetResultByTaskUUID(ctx context.Context, taskUUID string) (*model.MiningResult, error) {
	var record MiningResultRecord

	err := r.db.WithContext(ctx).Where("tid = ?", taskUUID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "result not found for task: "+taskUUID)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get result", err)
	}

	result, err := record.ToModel()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to decode result", err)
	}
	return result, nil
}

// ListResults returns the most recent results, optionally for one dataset.
func (r *GormResultRepository) ListResults(ctx context.Context, dataset string, limit int) ([]*model.MiningResult, error) {
	var records []MiningResultRecord

	q := r.db.WithContext(ctx).Order("id DESC")
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list results", err)
	}

	results := make([]*model.MiningResult, 0, len(records))
	for i := range records {
		result, err := records[i].ToModel()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to decode result", err)
		}
		results = append(results, result)
	}
	return results, nil
}
