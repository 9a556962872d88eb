package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/panda-miner/internal/dataset"
	"github.com/panda-miner/internal/miner"
	"github.com/panda-miner/pkg/model"
)

var _ miner.Miner = (*MockMiner)(nil)

// MockMiner is a mock implementation of the Miner interface.
type MockMiner struct {
	mock.Mock
}

// Mine mocks the Mine method.
func (m *MockMiner) Mine(ctx context.Context, ds *dataset.Dataset, params model.MiningParams) (*model.MiningResult, error) {
	args := m.Called(ctx, ds, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MiningResult), args.Error(1)
}

// Name mocks the Name method.
func (m *MockMiner) Name() string {
	args := m.Called()
	return args.String(0)
}
