package mocks

import (
	"context"

	"attachstore/internal/model"
	"attachstore/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) List(ctx context.Context, limit, offset int, viewer model.Identity, status *model.Status) (*service.RecordListResult, error) {
	args := m.Called(ctx, limit, offset, viewer, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordListResult), args.Error(1)
}

func (m *MockRecordService) Get(ctx context.Context, id string, viewer model.Identity) (*model.StorageRecord, error) {
	args := m.Called(ctx, id, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StorageRecord), args.Error(1)
}

func (m *MockRecordService) Delete(ctx context.Context, id string, actor model.Identity) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

func (m *MockRecordService) Restore(ctx context.Context, id string, actor model.Identity) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

func (m *MockRecordService) Usage(ctx context.Context) (*service.UsageResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UsageResult), args.Error(1)
}
