// Package mock provides testify mocks of the repository, storage and miner
// interfaces.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/panda-miner/internal/repository"
	"github.com/panda-miner/pkg/model"
)

var (
	_ repository.TaskRepository   = (*MockTaskRepository)(nil)
	_ repository.ResultRepository = (*MockResultRepository)(nil)
)

// MockTaskRepository is a mock implementation of the TaskRepository interface.
type MockTaskRepository struct {
	mock.Mock
}

// CreateTask mocks the CreateTask method.
func (m *MockTaskRepository) CreateTask(ctx context.Context, task *model.MiningTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// GetPendingTasks mocks the GetPendingTasks method.
func (m *MockTaskRepository) GetPendingTasks(ctx context.Context, limit int) ([]*model.MiningTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MiningTask), args.Error(1)
}

// GetTaskByID mocks the GetTaskByID method.
func (m *MockTaskRepository) GetTaskByID(ctx context.Context, id int64) (*model.MiningTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MiningTask), args.Error(1)
}

// GetTaskByUUID mocks the GetTaskByUUID method.
func (m *MockTaskRepository) GetTaskByUUID(ctx context.Context, uuid string) (*model.MiningTask, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MiningTask), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method.
func (m *MockTaskRepository) UpdateStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// UpdateStatusWithInfo mocks the UpdateStatusWithInfo method.
func (m *MockTaskRepository) UpdateStatusWithInfo(ctx context.Context, id int64, status model.TaskStatus, info string) error {
	args := m.Called(ctx, id, status, info)
	return args.Error(0)
}

// SetResultKey mocks the SetResultKey method.
func (m *MockTaskRepository) SetResultKey(ctx context.Context, id int64, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

// LockTaskForMining mocks the LockTaskForMining method.
func (m *MockTaskRepository) LockTaskForMining(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockResultRepository is a mock implementation of the ResultRepository interface.
type MockResultRepository struct {
	mock.Mock
}

// SaveResult mocks the SaveResult method.
func (m *MockResultRepository) SaveResult(ctx context.Context, result *model.MiningResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// GetResultByTaskUUID mocks the GetResultByTaskUUID method.
func (m *MockResultRepository) GetResultByTaskUUID(ctx context.Context, taskUUID string) (*model.MiningResult, error) {
	args := m.Called(ctx, taskUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MiningResult), args.Error(1)
}

// ListResults mocks the ListResults method.
func (m *MockResultRepository) ListResults(ctx context.Context, dataset string, limit int) ([]*model.MiningResult, error) {
	args := m.Called(ctx, dataset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MiningResult), args.Error(1)
}
